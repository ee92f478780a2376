package composite

import (
	"context"
	"image"
	"image/draw"
	"runtime"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Frame is one compositing request: the two slot images, the optional
// matte, and the eased progress of the take.
type Frame struct {
	Type     Type
	Outgoing image.Image
	Incoming image.Image
	Matte    image.Image
	Progress float64
	Params   Params
}

// Renderer composites frames into a fixed size output, splitting the rows
// across workers.
type Renderer struct {
	Bounds  image.Rectangle
	Workers int
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{
		Bounds:  image.Rect(0, 0, width, height),
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Fit scales img to the renderer's output size. Images that already match
// are returned unchanged.
func (r *Renderer) Fit(img image.Image) image.Image {
	if img == nil {
		return image.NewUniform(image.Transparent)
	}
	if img.Bounds() == r.Bounds {
		return img
	}
	if _, ok := img.(*image.Uniform); ok {
		return img
	}
	dst := image.NewRGBA64(r.Bounds)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Render writes the composite of f into dst, which must cover r.Bounds.
// It returns once every row is written or ctx is cancelled.
func (r *Renderer) Render(ctx context.Context, dst draw.Image, f Frame) error {
	out := r.sampler(f.Outgoing)
	in := r.sampler(f.Incoming)
	var matte Sampler
	if f.Type.UsesMatte() && f.Matte != nil {
		matte = r.sampler(f.Matte)
	}

	b := r.Bounds
	w, h := float64(b.Dx()), float64(b.Dy())

	g, ctx := errgroup.WithContext(ctx)
	if r.Workers > 0 {
		g.SetLimit(r.Workers)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := (float64(y-b.Min.Y) + 0.5) / h
			for x := b.Min.X; x < b.Max.X; x++ {
				uv := Vec2{(float64(x-b.Min.X) + 0.5) / w, v}
				px := Composite(f.Type, out, in, uv, f.Progress, f.Params, matte)
				dst.Set(x, y, px.RGBA64())
			}
			return nil
		})
	}
	return g.Wait()
}

// Copy writes a single image into dst without blending, for idle frames.
func (r *Renderer) Copy(dst draw.Image, img image.Image) {
	xdraw.Copy(dst, r.Bounds.Min, r.Fit(img), r.Bounds, xdraw.Src, nil)
}

func (r *Renderer) sampler(img image.Image) Sampler {
	img = r.Fit(img)
	if u, ok := img.(*image.Uniform); ok {
		return Solid(FromColor(u.C))
	}
	return NewImageSampler(img)
}
