// Package easing maps a linear transition fraction onto a shaped fraction.
//
// Every curve is pinned so that Ease(kind, 0) == 0 and Ease(kind, 1) == 1
// exactly. The S-curves built from naturally asymptotic functions (logistic,
// arctangent) are shifted and rescaled by their own values at 0 and 1.
package easing

import (
	"errors"
	"fmt"
	"math"
)

type Kind string

const (
	Linear         Kind = "linear"
	EaseIn         Kind = "ease_in"
	EaseOut        Kind = "ease_out"
	HalfCosineSoft Kind = "half_cosine_soft"
	HalfCosineHard Kind = "half_cosine_hard"
	LogisticSoft   Kind = "logistic_soft"
	LogisticHard   Kind = "logistic_hard"
	AtanSoft       Kind = "atan_soft"
	AtanHard       Kind = "atan_hard"
	Custom         Kind = "custom"
)

// Kinds lists every supported curve in display order.
var Kinds = []Kind{
	Linear, EaseIn, EaseOut,
	HalfCosineSoft, HalfCosineHard,
	LogisticSoft, LogisticHard,
	AtanSoft, AtanHard,
	Custom,
}

var (
	ErrUnknownKind            = errors.New("easing: unknown kind")
	ErrNormalizationViolation = errors.New("easing: curve endpoints are not exactly 0 and 1")
)

// Curve is an externally supplied single channel signal. ok is false when no
// value is available, in which case the custom kind falls back to identity.
type Curve interface {
	Sample(t float64) (v float64, ok bool)
}

type CurveFunc func(t float64) (float64, bool)

func (f CurveFunc) Sample(t float64) (float64, bool) { return f(t) }

// Default steepness per kind, used when Shape.Steepness is zero.
var defaultSteepness = map[Kind]float64{
	EaseIn:       2,
	EaseOut:      2,
	LogisticSoft: 6,
	LogisticHard: 12,
	AtanSoft:     4,
	AtanHard:     12,
}

// Shape is a curve selection with its optional parameters.
type Shape struct {
	Kind      Kind
	Steepness float64
	Curve     Curve
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	if s == "" {
		return Linear, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Ease shapes t with the kind's default steepness.
func Ease(kind Kind, t float64) float64 {
	return Shape{Kind: kind}.Apply(t)
}

// Apply returns the eased fraction for t. Inputs outside [0,1] are clamped.
func (s Shape) Apply(t float64) float64 {
	if math.IsNaN(t) || t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return checked(s.Kind, s.eval(t))
}

func (s Shape) steepness() float64 {
	if s.Steepness > 0 {
		return s.Steepness
	}
	return defaultSteepness[s.Kind]
}

func (s Shape) eval(t float64) float64 {
	switch s.Kind {
	case EaseIn:
		return math.Pow(t, math.Max(1, s.steepness()))
	case EaseOut:
		return 1 - math.Pow(1-t, math.Max(1, s.steepness()))
	case HalfCosineSoft:
		return halfCosine(t)
	case HalfCosineHard:
		return halfCosine(halfCosine(t))
	case LogisticSoft, LogisticHard:
		k := s.steepness()
		return normalize(func(x float64) float64 {
			return 1 / (1 + math.Exp(-k*(x-0.5)))
		}, t)
	case AtanSoft, AtanHard:
		k := s.steepness()
		return normalize(func(x float64) float64 {
			return math.Atan(k * (x - 0.5))
		}, t)
	case Custom:
		if s.Curve == nil {
			return t
		}
		v, ok := s.Curve.Sample(t)
		if !ok || math.IsNaN(v) {
			return t
		}
		return math.Min(1, math.Max(0, v))
	default:
		return t
	}
}

func halfCosine(t float64) float64 {
	return 0.5 - 0.5*math.Cos(math.Pi*t)
}

// normalize rescales f so that it passes through (0,0) and (1,1).
func normalize(f func(float64) float64, t float64) float64 {
	lo, hi := f(0), f(1)
	return (f(t) - lo) / (hi - lo)
}

// Verify evaluates the curve at both endpoints and across the interior and
// reports ErrNormalizationViolation if it leaves [0,1] or misses an endpoint.
func (s Shape) Verify() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	if v := s.eval(0); s.Kind != Custom && v != 0 {
		return fmt.Errorf("%w: %s(0) = %v", ErrNormalizationViolation, s.Kind, v)
	}
	if v := s.eval(1); s.Kind != Custom && v != 1 {
		return fmt.Errorf("%w: %s(1) = %v", ErrNormalizationViolation, s.Kind, v)
	}
	for i := 1; i < 64; i++ {
		t := float64(i) / 64
		if v := s.eval(t); v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s(%v) = %v", ErrNormalizationViolation, s.Kind, t, v)
		}
	}
	return nil
}

// checked enforces the [0,1] range. Debug builds panic, release builds clamp.
func checked(kind Kind, v float64) float64 {
	if v >= 0 && v <= 1 {
		return v
	}
	if strict {
		panic(fmt.Errorf("%w: %s produced %v", ErrNormalizationViolation, kind, v))
	}
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return 1
}
