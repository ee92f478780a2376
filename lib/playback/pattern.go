package playback

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"sourcerer/lib/source"
)

var ErrUnknownPattern = errors.New("playback: unknown pattern")

// Patterns lists the generative patterns Generate can draw.
var Patterns = []string{"solid", "bars", "gradient", "slate"}

var barColors = []color.RGBA{
	{191, 191, 191, 255},
	{191, 191, 0, 255},
	{0, 191, 191, 255},
	{0, 191, 0, 255},
	{191, 0, 191, 255},
	{191, 0, 0, 255},
	{0, 0, 191, 255},
}

func rgb(c [3]float64) color.RGBA {
	ch := func(v float64) uint8 {
		return uint8(max(0, min(1, v))*255 + 0.5)
	}
	return color.RGBA{ch(c[0]), ch(c[1]), ch(c[2]), 255}
}

// Generate draws a generative source at the given size. label, if set, is
// added under the slate text.
func Generate(p *source.GenerativeParams, width, height int, label string) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c := rgb(p.Color)

	switch p.Pattern {
	case "solid":
		draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)

	case "bars":
		for i, bar := range barColors {
			x0 := i * width / len(barColors)
			x1 := (i + 1) * width / len(barColors)
			draw.Draw(img, image.Rect(x0, 0, x1, height), &image.Uniform{bar}, image.Point{}, draw.Src)
		}

	case "gradient":
		for x := range width {
			k := float64(x) / float64(max(1, width-1))
			col := color.RGBA{
				uint8(float64(c.R)*k + 0.5),
				uint8(float64(c.G)*k + 0.5),
				uint8(float64(c.B)*k + 0.5),
				255,
			}
			draw.Draw(img, image.Rect(x, 0, x+1, height), &image.Uniform{col}, image.Point{}, draw.Src)
		}

	case "slate":
		draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
		lines := strings.Split(p.Text, "\n")
		if label != "" {
			lines = append(lines, label)
		}
		drawLines(img, contrast(c), lines...)

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownPattern, p.Pattern)
	}
	return img, nil
}

func contrast(c color.RGBA) color.Color {
	if int(c.R)*2126+int(c.G)*7152+int(c.B)*722 > 128*10000 {
		return color.Black
	}
	return color.White
}

// drawLines centres lines of basicfont text on img.
func drawLines(img draw.Image, fg color.Color, lines ...string) {
	b := img.Bounds()
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	totalHeight := lineHeight * len(lines)
	startY := b.Min.Y + (b.Dy()-totalHeight)/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{fg},
			Face: face,
			Dot:  fixed.P(b.Min.X+(b.Dx()-width)/2, startY+i*lineHeight),
		}
		d.DrawString(line)
	}
}
