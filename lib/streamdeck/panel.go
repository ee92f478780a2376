package streamdeck

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/sirupsen/logrus"

	"sourcerer/lib/switcher"
)

var (
	colorIdle    = color.RGBA{40, 40, 40, 255}
	colorActive  = color.RGBA{0, 160, 60, 255}
	colorPending = color.RGBA{230, 150, 0, 255}
	colorPage    = color.RGBA{30, 60, 140, 255}
)

// Keys is the part of a Device the panel draws on.
type Keys interface {
	Model() *Model
	SetKeyImage(key int, img image.Image) error
}

// Strip is implemented by panels with a touch strip display.
type Strip interface {
	SetLCDImage(x, y, w, h int, img image.Image) error
}

// Taker is the switcher side of the panel. *switcher.Controller
// implements it.
type Taker interface {
	Take(req switcher.Request, force bool) error
}

// Panel shows one key per source. When the list does not fit, the last key
// pages through it.
type Panel struct {
	keys  Keys
	taker Taker

	mu    sync.Mutex
	page  int
	names []string
	snap  switcher.Snapshot
	drawn map[int]string
	strip string
}

func NewPanel(keys Keys, taker Taker) *Panel {
	return &Panel{keys: keys, taker: taker, drawn: map[int]string{}}
}

// layout returns how many sources fit on a page and the page count.
func (p *Panel) layout() (perPage, pages int) {
	n := p.keys.Model().Keys
	if len(p.names) <= n {
		return n, 1
	}
	perPage = n - 1
	return perPage, (len(p.names) + perPage - 1) / perPage
}

// Press handles a key going down.
func (p *Panel) Press(key int) {
	p.mu.Lock()
	perPage, pages := p.layout()
	if pages > 1 && key == perPage {
		p.page = (p.page + 1) % pages
		p.redrawLocked()
		p.mu.Unlock()
		return
	}
	index := p.page*perPage + key
	known := key < perPage && index < len(p.names)
	p.mu.Unlock()

	if !known {
		return
	}
	if err := p.taker.Take(switcher.ByIndex(index), false); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Press",
			"key":      key,
			"index":    index,
		}).WithError(err).Warn("Panel take failed")
	}
}

// Page is the page being shown.
func (p *Panel) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Update redraws keys whose source or tally changed.
func (p *Panel) Update(snap switcher.Snapshot, names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
	p.names = names
	if _, pages := p.layout(); p.page >= pages {
		p.page = 0
	}
	p.redrawLocked()
}

func (p *Panel) redrawLocked() {
	m := p.keys.Model()
	perPage, pages := p.layout()

	active, pending := -1, -1
	if p.snap.Active != nil {
		active = p.snap.Active.Index
	}
	if p.snap.Session != nil {
		pending = p.snap.Session.To.Index
	}

	for key := 0; key < m.Keys; key++ {
		bg, fg := color.Color(color.Black), color.Color(color.White)
		var lines []string

		index := p.page*perPage + key
		switch {
		case pages > 1 && key == perPage:
			bg = colorPage
			lines = []string{"PAGE", fmt.Sprintf("%d/%d", p.page+1, pages)}
		case key < perPage && index < len(p.names):
			bg = colorIdle
			switch index {
			case pending:
				bg, fg = colorPending, color.Black
			case active:
				bg = colorActive
			}
			lines = append([]string{fmt.Sprint(index + 1)}, wrap(p.names[index], m.KeySize/7, 4)...)
		}

		sig := fmt.Sprint(bg, lines)
		if p.drawn[key] == sig {
			continue
		}
		if err := p.keys.SetKeyImage(key, TextImage(m.KeySize, bg, fg, lines...)); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "redraw",
				"key":      key,
			}).WithError(err).Debug("Key write failed")
			continue
		}
		p.drawn[key] = sig
	}
	p.drawStripLocked()
}

// drawStripLocked shows program and preview names on the touch strip.
func (p *Panel) drawStripLocked() {
	m := p.keys.Model()
	strip, ok := p.keys.(Strip)
	if !ok || m.LCDWidth == 0 {
		return
	}
	pgm, pvw := "-", "-"
	if p.snap.Active != nil {
		pgm = p.snap.Active.Name
	}
	if p.snap.Session != nil {
		pvw = p.snap.Session.To.Name
	}
	lines := []string{"PGM " + pgm, "PVW " + pvw}
	sig := fmt.Sprint(lines)
	if p.strip == sig {
		return
	}
	img := TextImage(m.LCDWidth, color.Black, color.White, lines...)
	if err := strip.SetLCDImage(0, 0, m.LCDWidth, m.LCDHeight, img.SubImage(stripRect(m))); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "drawStrip",
		}).WithError(err).Debug("Strip write failed")
		return
	}
	p.strip = sig
}

// stripRect is the band of a square text image that holds the centred lines.
func stripRect(m *Model) image.Rectangle {
	top := (m.LCDWidth - m.LCDHeight) / 2
	return image.Rect(0, top, m.LCDWidth, top+m.LCDHeight)
}
