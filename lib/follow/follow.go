// Package follow watches the done condition of the playing source and issues
// its follow action as an ordinary take.
package follow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sourcerer/lib/source"
	"sourcerer/lib/switcher"
)

var ErrNoFollowTarget = errors.New("follow: no target")

// Taker is the request path the scheduler shares with manual takes.
type Taker interface {
	Take(req switcher.Request, force bool) error
	GlobalDuration() time.Duration
}

// Status is what the playback collaborator reports for the playing source.
type Status struct {
	// Loops counts completed loops.
	Loops int
	// Played is the total time played since the source started, across loops.
	Played     time.Duration
	LoopLength time.Duration
	Rate       float64
}

type Options struct {
	// WrapNext makes the next action on the last source go to index 0
	// instead of stopping.
	WrapNext bool
	// OnDone is called when the done condition fires, before the follow
	// take is issued.
	OnDone func(index int, src *source.Source)
}

type Scheduler struct {
	mu      sync.Mutex
	list    *source.List
	taker   Taker
	signals Signals
	opts    Options

	playing    bool
	index      int
	src        *source.Source
	began      time.Duration
	now        time.Duration
	status     Status
	lastSignal bool
	pulse      bool
	fired      bool
}

func New(list *source.List, taker Taker, signals Signals, opts Options) *Scheduler {
	if signals == nil {
		signals = &Triggers{}
	}
	return &Scheduler{
		list:    list,
		taker:   taker,
		signals: signals,
		opts:    opts,
	}
}

// Begin starts watching src, which began playing at now. index is the list
// position, or -1 for a temporary source.
func (s *Scheduler) Begin(index int, src *source.Source, now time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = src != nil
	s.index = index
	s.src = src
	s.began = now
	s.now = now
	s.status = Status{}
	s.pulse = false
	s.fired = false
	s.lastSignal = false
	if src != nil && src.Done.On == source.ExternalTrigger {
		s.lastSignal = s.signals.Signal(src.Done.Trigger)
	}
}

// Relist updates the list position and name of the playing source after a
// list edit. index is -1 once the source has left the list.
func (s *Scheduler) Relist(index int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.index = index
	if s.src.Name != name {
		src := s.src.Clone()
		src.Name = name
		s.src = src
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.src = nil
}

// Pulse marks the playing source done on the next tick whatever its
// condition. It is how manual sources advance.
func (s *Scheduler) Pulse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulse = true
}

// Tick evaluates the done condition. It fires at most once per Begin and
// returns the error of a follow take that could not be issued.
func (s *Scheduler) Tick(now time.Duration, st Status) error {
	s.mu.Lock()
	s.now = now
	s.status = st
	if !s.playing || s.fired || !s.isDone(now, st) {
		s.mu.Unlock()
		return nil
	}
	s.fired = true
	s.pulse = false
	index, src := s.index, s.src
	req, err := s.followRequest()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Tick",
		"source":    src.Name,
		"condition": src.Done.On,
		"played":    st.Played,
		"follow":    src.Follow.Action,
	}).Info("Source done")

	if s.opts.OnDone != nil {
		s.opts.OnDone(index, src)
	}
	if errors.Is(err, ErrNoFollowTarget) {
		return nil
	}
	if err == nil {
		err = s.taker.Take(req, false)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Tick",
			"source":   src.Name,
			"follow":   src.Follow.Action,
		}).WithError(err).Error("Follow action failed")
		return fmt.Errorf("follow: %s from %q: %w", src.Follow.Action, src.Name, err)
	}
	return nil
}

func (s *Scheduler) isDone(now time.Duration, st Status) bool {
	d := s.src.Done
	done := false
	switch d.On {
	case source.PlayNTimes:
		if st.Loops >= d.Loops {
			done = true
		} else if st.LoopLength > 0 {
			if lead := s.lookahead(); lead > 0 {
				done = st.Played >= time.Duration(d.Loops)*st.LoopLength-lead
			}
		}
	case source.Timer:
		done = now-s.began >= s.src.TimerDuration()
	case source.ExternalTrigger:
		level := s.signals.Signal(d.Trigger)
		done = level && !s.lastSignal
		s.lastSignal = level
	}
	return done || s.pulse
}

// lookahead is the duration of the take the follow action would start, so
// that it completes as the last loop ends. Zero when nothing would follow.
func (s *Scheduler) lookahead() time.Duration {
	req, err := s.followRequest()
	if err != nil {
		return 0
	}
	target, err := s.resolve(req)
	if err != nil {
		return 0
	}
	return target.EffectiveDuration(s.taker.GlobalDuration())
}

func (s *Scheduler) followRequest() (switcher.Request, error) {
	f := s.src.Follow
	switch f.Action {
	case source.FollowNext:
		next := s.index + 1
		if s.index < 0 {
			next = 0
		}
		if next >= s.list.Count() {
			if !s.opts.WrapNext || s.list.Count() == 0 {
				return switcher.Request{}, fmt.Errorf("%w: %q is the last source", ErrNoFollowTarget, s.src.Name)
			}
			next = 0
		}
		return switcher.ByIndex(next), nil
	case source.FollowGotoIndex:
		return switcher.ByIndex(f.Index), nil
	case source.FollowGotoName:
		return switcher.ByName(f.Name), nil
	}
	return switcher.Request{}, ErrNoFollowTarget
}

func (s *Scheduler) resolve(req switcher.Request) (*source.Source, error) {
	t, err := switcher.Resolve(s.list, req)
	if err != nil {
		return nil, err
	}
	return t.Source, nil
}
