package playback

import (
	"image"
	"math"
	"time"

	"sourcerer/lib/follow"
	"sourcerer/lib/source"
)

// Player plays one source into one slot. It is driven from the tick loop
// and is not safe for concurrent use.
type Player struct {
	media  *Media
	width  int
	height int
	// DefaultRate applies to generative sources and files without a rate.
	DefaultRate float64

	src     *source.Source
	started time.Duration
	img     image.Image
	frames  int
	rate    float64
	label   string
}

func NewPlayer(media *Media, width, height int, rate float64) *Player {
	return &Player{
		media:       media,
		width:       width,
		height:      height,
		DefaultRate: rate,
	}
}

// Load cues src from its first frame at now. On error the player keeps src
// but shows nothing, so the slot renders transparent.
func (p *Player) Load(src *source.Source, now time.Duration) error {
	p.src = src
	p.started = now
	p.img = nil
	p.label = ""
	p.rate = p.DefaultRate
	p.frames = 0

	if src == nil {
		return nil
	}
	switch src.Kind {
	case source.File:
		if src.File.Rate > 0 {
			p.rate = src.File.Rate
		}
		p.frames = src.File.Frames
		if p.frames == 0 {
			p.frames = int(math.Round(p.rate))
		}
		img, err := p.media.Image(src.File.Path)
		if err != nil {
			return err
		}
		p.img = img

	case source.Generative:
		img, err := Generate(src.Generative, p.width, p.height, "")
		if err != nil {
			return err
		}
		p.img = img
	}
	return nil
}

func (p *Player) Source() *source.Source { return p.src }

// Frame returns the image to show at now, or nil when nothing is loaded.
func (p *Player) Frame(now time.Duration) image.Image {
	if p.src == nil || p.img == nil {
		return nil
	}
	if p.src.Kind == source.Generative && p.src.Generative.Pattern == "slate" {
		label := follow.Timecode(p.played(now).Truncate(time.Second), p.rate)[:8]
		if label != p.label {
			if img, err := Generate(p.src.Generative, p.width, p.height, label); err == nil {
				p.img = img
				p.label = label
			}
		}
	}
	return p.img
}

func (p *Player) played(now time.Duration) time.Duration {
	return max(0, now-p.started)
}

// LoopLength is the length of one pass through a file source, zero for
// generative sources.
func (p *Player) LoopLength() time.Duration {
	if p.src == nil || p.src.Kind != source.File || p.rate <= 0 {
		return 0
	}
	return time.Duration(float64(p.frames) / p.rate * float64(time.Second))
}

func (p *Player) Status(now time.Duration) follow.Status {
	st := follow.Status{
		Played:     p.played(now),
		LoopLength: p.LoopLength(),
		Rate:       p.rate,
	}
	if st.LoopLength > 0 {
		st.Loops = int(st.Played / st.LoopLength)
	}
	return st
}
