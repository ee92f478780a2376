package composite

import (
	"image"
	"image/color"
	"math"
)

// Pixel is a color sample in the images' native encoding, each channel in
// [0,1]. Alpha is premultiplied, matching image/color.
type Pixel struct {
	R, G, B, A float64
}

var Transparent = Pixel{}

func Opaque(r, g, b float64) Pixel {
	return Pixel{R: r, G: g, B: b, A: 1}
}

func FromColor(c color.Color) Pixel {
	r, g, b, a := c.RGBA()
	return Pixel{
		R: float64(r) / 0xffff,
		G: float64(g) / 0xffff,
		B: float64(b) / 0xffff,
		A: float64(a) / 0xffff,
	}
}

func (p Pixel) RGBA64() color.RGBA64 {
	return color.RGBA64{
		R: channel16(p.R),
		G: channel16(p.G),
		B: channel16(p.B),
		A: channel16(p.A),
	}
}

func channel16(v float64) uint16 {
	return uint16(math.Round(math.Min(1, math.Max(0, v)) * 0xffff))
}

// Luma is the Rec. 709 weighted sum of the color channels.
func (p Pixel) Luma() float64 {
	return 0.2126*p.R + 0.7152*p.G + 0.0722*p.B
}

func (p Pixel) scale(k float64) Pixel {
	return Pixel{p.R * k, p.G * k, p.B * k, p.A * k}
}

func (p Pixel) add(q Pixel) Pixel {
	return Pixel{p.R + q.R, p.G + q.G, p.B + q.B, p.A + q.A}
}

// Lerp returns a at t=0 and b at t=1 exactly.
func Lerp(a, b Pixel, t float64) Pixel {
	return a.scale(1 - t).add(b.scale(t))
}

// Vec2 is a 2D vector in normalized texture space, origin top left.
type Vec2 struct {
	X, Y float64
}

// Sampler reads a source image at normalized coordinates.
type Sampler interface {
	Sample(uv Vec2) Pixel
	// Texel is the size of one source pixel in normalized units.
	Texel() Vec2
}

// Solid is a Sampler returning the same pixel everywhere.
type Solid Pixel

func (s Solid) Sample(Vec2) Pixel { return Pixel(s) }
func (s Solid) Texel() Vec2       { return Vec2{1, 1} }

// ImageSampler samples an image with nearest neighbor lookup and clamped
// edges. Wrap the image in a scaled copy first if it differs from the output
// size.
type ImageSampler struct {
	img    image.Image
	bounds image.Rectangle
}

func NewImageSampler(img image.Image) *ImageSampler {
	return &ImageSampler{img: img, bounds: img.Bounds()}
}

func (s *ImageSampler) Sample(uv Vec2) Pixel {
	b := s.bounds
	if b.Empty() {
		return Transparent
	}
	x := b.Min.X + clampInt(int(math.Floor(uv.X*float64(b.Dx()))), 0, b.Dx()-1)
	y := b.Min.Y + clampInt(int(math.Floor(uv.Y*float64(b.Dy()))), 0, b.Dy()-1)
	return FromColor(s.img.At(x, y))
}

func (s *ImageSampler) Texel() Vec2 {
	b := s.bounds
	if b.Empty() {
		return Vec2{1, 1}
	}
	return Vec2{1 / float64(b.Dx()), 1 / float64(b.Dy())}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
