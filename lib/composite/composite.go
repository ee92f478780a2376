// Package composite blends an outgoing and an incoming source into one output
// pixel for each transition type.
//
// Composite is pure and independent across locations, so a frame can be
// evaluated in any order or in parallel (see Renderer).
package composite

import (
	"errors"
	"fmt"
	"math"
)

type Type string

const (
	Dissolve      Type = "dissolve"
	Dip           Type = "dip"
	Slide         Type = "slide"
	Wipe          Type = "wipe"
	Blur          Type = "blur"
	MatteFile     Type = "matte_file"
	MatteExternal Type = "matte_external"
)

var Types = []Type{Dissolve, Dip, Slide, Wipe, Blur, MatteFile, MatteExternal}

var ErrUnknownType = errors.New("composite: unknown transition type")

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) UsesMatte() bool {
	return t == MatteFile || t == MatteExternal
}

func ParseType(s string) (Type, error) {
	if s == "" {
		return Dissolve, nil
	}
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

type BlurQuality int

const (
	BlurGaussian BlurQuality = iota
	BlurBox
)

const (
	DefaultBlurRadius = 8.0

	// Below this radius, in source pixels, blur uses the sharp samples.
	blurThreshold = 0.5
	// Taps per axis side; larger radii are covered by spreading the taps.
	maxBlurTaps = 6
)

// Params holds the transition specific settings.
type Params struct {
	// Direction of slide and wipe moves. A zero vector means left to right.
	Direction Vec2
	DipColor  Pixel
	// BlurRadius is the peak radius in source pixels, reached at progress 0.5.
	BlurRadius float64
	Blur       BlurQuality
}

func (p Params) direction() Vec2 {
	if p.Direction.X == 0 && p.Direction.Y == 0 {
		return Vec2{1, 0}
	}
	return p.Direction
}

func (p Params) blurRadius() float64 {
	if p.BlurRadius > 0 {
		return p.BlurRadius
	}
	return DefaultBlurRadius
}

// Composite evaluates one output location. progress is the eased fraction of
// the take, 0 showing outgoing and 1 showing incoming. matte is only read by
// the luma matte types and may be nil.
func Composite(t Type, outgoing, incoming Sampler, uv Vec2, progress float64, p Params, matte Sampler) Pixel {
	switch t {
	case Dissolve:
		return Lerp(outgoing.Sample(uv), incoming.Sample(uv), progress)
	case Dip:
		return dip(outgoing.Sample(uv), incoming.Sample(uv), progress, p.DipColor)
	case Slide:
		return slide(outgoing, incoming, uv, progress, p.direction())
	case Wipe:
		return wipe(outgoing, incoming, uv, progress, p.direction())
	case Blur:
		return blur(outgoing, incoming, uv, progress, p)
	case MatteFile, MatteExternal:
		return lumaMatte(outgoing, incoming, uv, progress, matte)
	default:
		return Lerp(outgoing.Sample(uv), incoming.Sample(uv), progress)
	}
}

func dip(out, in Pixel, progress float64, color Pixel) Pixel {
	if progress < 0.5 {
		return Lerp(out, color, progress*2)
	}
	return Lerp(color, in, (progress-0.5)*2)
}

// slide moves the plane made of the outgoing tile and the incoming tile
// behind it by progress*dir. A screen location past the moving seam on any
// axis shows the incoming tile, offset by one tile on each axis it has
// crossed. Mixed sign directions would shear the plane and yield Transparent.
func slide(outgoing, incoming Sampler, uv Vec2, progress float64, dir Vec2) Pixel {
	if dir.X*dir.Y < 0 {
		return Transparent
	}
	s := Vec2{uv.X - progress*dir.X, uv.Y - progress*dir.Y}
	in := s
	past := false
	if x, crossed := crossSeam(s.X, dir.X); crossed {
		in.X, past = x, true
	}
	if y, crossed := crossSeam(s.Y, dir.Y); crossed {
		in.Y, past = y, true
	}
	if !past {
		return outgoing.Sample(s)
	}
	return incoming.Sample(in)
}

func crossSeam(s, d float64) (float64, bool) {
	switch {
	case d > 0 && s < 0:
		return s + 1, true
	case d < 0 && s >= 1:
		return s - 1, true
	}
	return s, false
}

// wipe reveals incoming along the dominant axis of dir with a hard edge.
func wipe(outgoing, incoming Sampler, uv Vec2, progress float64, dir Vec2) Pixel {
	ax, ay := math.Abs(dir.X), math.Abs(dir.Y)
	if ax == ay && dir.X*dir.Y < 0 {
		return Transparent
	}
	var c float64
	if ax >= ay {
		c = uv.X
		if dir.X < 0 {
			c = 1 - uv.X
		}
	} else {
		c = uv.Y
		if dir.Y < 0 {
			c = 1 - uv.Y
		}
	}
	if progress >= 1 || c < progress {
		return incoming.Sample(uv)
	}
	return outgoing.Sample(uv)
}

// BlurRadiusAt is zero at both ends of the take and peaks at the midpoint.
func BlurRadiusAt(progress, maxRadius float64) float64 {
	return (1 - math.Abs(2*progress-1)) * maxRadius
}

func blur(outgoing, incoming Sampler, uv Vec2, progress float64, p Params) Pixel {
	r := BlurRadiusAt(progress, p.blurRadius())
	if r < blurThreshold {
		return Lerp(outgoing.Sample(uv), incoming.Sample(uv), progress)
	}
	k := newKernel(r, p.Blur)
	return Lerp(k.apply(outgoing, uv), k.apply(incoming, uv), progress)
}

type kernel struct {
	offsets []float64
	weights []float64
}

// newKernel builds a symmetric 1D kernel over [-r, r] in source pixels. The
// 2D weight of a tap is the product of its axis weights.
func newKernel(r float64, q BlurQuality) kernel {
	n := int(math.Ceil(r))
	if n > maxBlurTaps {
		n = maxBlurTaps
	}
	step := r / float64(n)
	sigma := r / 2
	k := kernel{}
	total := 0.0
	for i := -n; i <= n; i++ {
		off := float64(i) * step
		w := 1.0
		if q == BlurGaussian {
			w = math.Exp(-(off * off) / (2 * sigma * sigma))
		}
		k.offsets = append(k.offsets, off)
		k.weights = append(k.weights, w)
		total += w
	}
	for i := range k.weights {
		k.weights[i] /= total
	}
	return k
}

func (k kernel) apply(s Sampler, uv Vec2) Pixel {
	texel := s.Texel()
	var acc Pixel
	for j, oy := range k.offsets {
		for i, ox := range k.offsets {
			w := k.weights[i] * k.weights[j]
			acc = acc.add(s.Sample(Vec2{uv.X + ox*texel.X, uv.Y + oy*texel.Y}).scale(w))
		}
	}
	return acc
}

// lumaMatte reveals incoming where the matte is darker than progress.
func lumaMatte(outgoing, incoming Sampler, uv Vec2, progress float64, matte Sampler) Pixel {
	luma := 0.0
	if matte != nil {
		luma = matte.Sample(uv).Luma()
	}
	if progress >= 1 || luma < progress {
		return incoming.Sample(uv)
	}
	return outgoing.Sample(uv)
}
