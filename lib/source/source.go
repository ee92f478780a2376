package source

import (
	"errors"
	"fmt"
	"math"
	"time"

	"sourcerer/lib/composite"
	"sourcerer/lib/easing"
)

type Kind string

const (
	File       Kind = "file"
	Generative Kind = "generative"
)

type DoneOn string

const (
	DoneNone        DoneOn = "none"
	PlayNTimes      DoneOn = "play_n_times"
	Timer           DoneOn = "timer"
	ExternalTrigger DoneOn = "external_trigger"
	Manual          DoneOn = "manual"
)

type FollowAction string

const (
	FollowNone      FollowAction = "none"
	FollowNext      FollowAction = "next"
	FollowGotoIndex FollowAction = "goto_index"
	FollowGotoName  FollowAction = "goto_name"
)

var (
	ErrNotFound    = errors.New("source not found")
	ErrInvalidData = errors.New("invalid source data")
)

type Source struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	File       *FileParams       `json:"file,omitempty"`
	Generative *GenerativeParams `json:"generative,omitempty"`

	Transition Transition `json:"transition"`
	Done       Done       `json:"done"`
	Follow     Follow     `json:"follow"`

	// Command is a Lua chunk run when the source is taken.
	Command string `json:"command,omitempty"`
}

// FileParams are read by the playback collaborator. Frames and Rate describe
// one loop of the clip.
type FileParams struct {
	Path   string  `json:"path"`
	Frames int     `json:"frames,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
}

type GenerativeParams struct {
	Pattern string     `json:"pattern"`
	Color   [3]float64 `json:"color,omitempty"`
	Text    string     `json:"text,omitempty"`
}

type Transition struct {
	Type      composite.Type `json:"type,omitempty"`
	Direction [2]float64     `json:"direction,omitempty"`
	DipColor  [3]float64     `json:"dip_color,omitempty"`
	// Matte is an image path for matte_file and a source name for
	// matte_external.
	Matte             string      `json:"matte,omitempty"`
	BlurAmount        float64     `json:"blur_amount,omitempty"`
	Duration          float64     `json:"duration"`
	UseGlobalDuration bool        `json:"use_global_duration,omitempty"`
	Shape             easing.Kind `json:"shape,omitempty"`
	Steepness         float64     `json:"steepness,omitempty"`
	// Curve is a Lua chunk defining curve(t) for the custom shape.
	Curve string `json:"curve,omitempty"`
}

type Done struct {
	On      DoneOn  `json:"condition,omitempty"`
	Loops   int     `json:"loops,omitempty"`
	Timer   float64 `json:"timer,omitempty"`
	Trigger string  `json:"trigger,omitempty"`
}

type Follow struct {
	Action FollowAction `json:"action,omitempty"`
	Index  int          `json:"index,omitempty"`
	Name   string       `json:"name,omitempty"`
}

// Default is the template new sources start from.
func Default() *Source {
	return &Source{
		Name:       "new_source",
		Kind:       Generative,
		Generative: &GenerativeParams{Pattern: "solid"},
		Transition: Transition{
			Type:              composite.Dissolve,
			Direction:         [2]float64{1, 0},
			Duration:          1,
			UseGlobalDuration: true,
			Shape:             easing.Linear,
		},
		Done:   Done{On: DoneNone, Loops: 1},
		Follow: Follow{Action: FollowNone},
	}
}

func (s *Source) Clone() *Source {
	c := *s
	if s.File != nil {
		f := *s.File
		c.File = &f
	}
	if s.Generative != nil {
		g := *s.Generative
		c.Generative = &g
	}
	return &c
}

// EffectiveDuration resolves the take duration against the global setting.
func (s *Source) EffectiveDuration(global time.Duration) time.Duration {
	if s.Transition.UseGlobalDuration {
		return global
	}
	return seconds(s.Transition.Duration)
}

func (s *Source) TimerDuration() time.Duration {
	return seconds(s.Done.Timer)
}

func (s *Source) Shape() easing.Shape {
	kind := s.Transition.Shape
	if kind == "" {
		kind = easing.Linear
	}
	return easing.Shape{Kind: kind, Steepness: s.Transition.Steepness}
}

func (s *Source) TransitionType() composite.Type {
	if s.Transition.Type == "" {
		return composite.Dissolve
	}
	return s.Transition.Type
}

// Params converts the transition settings into compositing parameters.
func (s *Source) Params() composite.Params {
	t := s.Transition
	return composite.Params{
		Direction:  composite.Vec2{X: t.Direction[0], Y: t.Direction[1]},
		DipColor:   composite.Opaque(t.DipColor[0], t.DipColor[1], t.DipColor[2]),
		BlurRadius: t.BlurAmount,
	}
}

func seconds(v float64) time.Duration {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// Validate checks the fields the switcher and the playback collaborator
// need. Errors wrap ErrInvalidData.
func (s *Source) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidData)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidData)
	}
	switch s.Kind {
	case File:
		if s.File == nil || s.File.Path == "" {
			return fmt.Errorf("%w: file source %q has no path", ErrInvalidData, s.Name)
		}
		if s.File.Frames < 0 || s.File.Rate < 0 {
			return fmt.Errorf("%w: file source %q has negative frames or rate", ErrInvalidData, s.Name)
		}
	case Generative:
		if s.Generative == nil || s.Generative.Pattern == "" {
			return fmt.Errorf("%w: generative source %q has no pattern", ErrInvalidData, s.Name)
		}
	default:
		return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalidData, s.Name, s.Kind)
	}

	t := s.Transition
	if t.Type != "" && !t.Type.Valid() {
		return fmt.Errorf("%w: source %q: %w", ErrInvalidData, s.Name, composite.ErrUnknownType)
	}
	if t.Type.UsesMatte() && t.Matte == "" {
		return fmt.Errorf("%w: source %q uses %s without a matte", ErrInvalidData, s.Name, t.Type)
	}
	if err := s.Shape().Verify(); err != nil {
		return fmt.Errorf("%w: source %q: %w", ErrInvalidData, s.Name, err)
	}

	switch s.Done.On {
	case "", DoneNone, Manual:
	case PlayNTimes:
		if s.Kind != File {
			return fmt.Errorf("%w: source %q: play_n_times needs a file source", ErrInvalidData, s.Name)
		}
		if s.Done.Loops < 1 {
			return fmt.Errorf("%w: source %q: play_n_times needs loops >= 1", ErrInvalidData, s.Name)
		}
	case Timer:
		if s.Done.Timer <= 0 {
			return fmt.Errorf("%w: source %q: timer needs a positive duration", ErrInvalidData, s.Name)
		}
	case ExternalTrigger:
		if s.Done.Trigger == "" {
			return fmt.Errorf("%w: source %q: external_trigger needs a trigger name", ErrInvalidData, s.Name)
		}
	default:
		return fmt.Errorf("%w: source %q has unknown done condition %q", ErrInvalidData, s.Name, s.Done.On)
	}

	switch s.Follow.Action {
	case "", FollowNone, FollowNext, FollowGotoIndex:
	case FollowGotoName:
		if s.Follow.Name == "" {
			return fmt.Errorf("%w: source %q: goto_name needs a target name", ErrInvalidData, s.Name)
		}
	default:
		return fmt.Errorf("%w: source %q has unknown follow action %q", ErrInvalidData, s.Name, s.Follow.Action)
	}
	return nil
}
