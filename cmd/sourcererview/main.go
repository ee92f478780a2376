// Command sourcererview runs the switcher with a preview window and
// keyboard control instead of network surfaces.
//
//	1-9        take source 1-9 (hold shift to force)
//	up/down    move the selection
//	enter      take the selection
//	c / s      clear / skip the queue
//	d          manual done
//	q          toggle queueing
//	f11        fullscreen
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"

	"sourcerer/lib/config"
	"sourcerer/lib/engine"
	"sourcerer/lib/follow"
	"sourcerer/lib/source"
	"sourcerer/lib/switcher"
)

var digitKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5,
	ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

type view struct {
	e          *engine.Engine
	window     *ebiten.Image
	width      int
	height     int
	fullscreen bool
}

func (v *view) Update() error {
	ctl := v.e.Controller()
	force := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	for i, k := range digitKeys {
		if inpututil.IsKeyJustPressed(k) {
			if err := ctl.Take(switcher.ByIndex(i), force); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Update",
					"index":    i,
				}).WithError(err).Warn("Take failed")
			}
		}
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		ctl.SelectUp()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		ctl.SelectDown()
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		_ = ctl.TakeSelected(force)
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		ctl.ClearPendingQueue()
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		ctl.SkipToLastPending()
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		v.e.Done()
	case inpututil.IsKeyJustPressed(ebiten.KeyQ):
		ctl.SetQueueEnabled(!ctl.IsQueueEnabled())
	case inpututil.IsKeyJustPressed(ebiten.KeyF11):
		v.fullscreen = !v.fullscreen
		ebiten.SetFullscreen(v.fullscreen)
	}
	return nil
}

func (v *view) Draw(screen *ebiten.Image) {
	if v.window == nil {
		v.window = ebiten.NewImage(v.width, v.height)
	}
	v.window.WritePixels(v.e.Frame().Pix)
	screen.DrawImage(v.window, nil)
	ebitenutil.DebugPrint(screen, status(v.e.State()))
}

func (v *view) Layout(_, _ int) (int, int) {
	return v.width, v.height
}

func status(st engine.State) string {
	name := func(r *switcher.Ref) string {
		if r == nil {
			return "-"
		}
		return r.Name
	}
	s := fmt.Sprintf("PGM %s  PVW %s  sel %d  queue %d", name(st.Active), name(st.Pending), st.Selected+1, len(st.Queue))
	if !st.QueueEnabled {
		s += " (off)"
	}
	if st.Transitioning {
		s += fmt.Sprintf("  %3.0f%%", st.Progress*100)
	}
	if r := st.Report; r != nil {
		s += "\n" + r.Timecode
		if r.Remaining > 0 {
			s += "  -" + follow.Timecode(r.Remaining, 30)
		}
		if r.Next != "" {
			s += "  next " + r.Next
		}
	}
	return s
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(cfg.Level())

	var list *source.List
	if cfg.MockSources > 0 {
		list, err = source.NewList(source.GenerateMock(cfg.MockSources, cfg.MockSeed)...)
	} else {
		list, err = source.Load(cfg.SourcesPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sources: %v\n", err)
		os.Exit(1)
	}

	blur, _ := cfg.Blur()
	e := engine.New(list, engine.Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		FrameRate:      cfg.FrameRate,
		Workers:        cfg.Workers,
		GlobalDuration: cfg.TransitionDuration,
		QueueEnabled:   cfg.QueueEnabled,
		WrapNext:       cfg.WrapNext,
		Blur:           blur,
		MediaDir:       cfg.MediaDir,
	})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle("sourcerer")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	if err := ebiten.RunGame(&view{e: e, width: cfg.Width, height: cfg.Height}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
