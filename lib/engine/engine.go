// Package engine runs the per-frame loop: it advances the switcher and the
// follow scheduler, keeps the two slot players loaded with the right
// sources and composites the output frame.
package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sourcerer/lib/composite"
	"sourcerer/lib/follow"
	"sourcerer/lib/playback"
	"sourcerer/lib/script"
	"sourcerer/lib/source"
	"sourcerer/lib/switcher"
	"sourcerer/lib/transition"
)

type Options struct {
	Width          int
	Height         int
	FrameRate      float64
	Workers        int
	GlobalDuration time.Duration
	QueueEnabled   bool
	WrapNext       bool
	Blur           composite.BlurQuality
	MediaDir       string
}

type Engine struct {
	opts     Options
	list     *source.List
	ctl      *switcher.Controller
	sched    *follow.Scheduler
	triggers *follow.Triggers
	media    *playback.Media
	renderer *composite.Renderer
	curves   *script.Curves
	runner   *script.Runner

	// Tick loop only.
	players   [2]*playback.Player
	matte     *playback.Player
	matteFor  string
	back      *image.RGBA

	inboxMu sync.Mutex
	inbox   []switcher.Event

	mu    sync.RWMutex
	now   time.Duration
	front *image.RGBA
}

func New(list *source.List, opts Options) *Engine {
	e := &Engine{
		opts:     opts,
		list:     list,
		triggers: &follow.Triggers{},
		media:    playback.NewMedia(opts.MediaDir),
		renderer: composite.NewRenderer(opts.Width, opts.Height),
		curves:   script.NewCurves(),
		back:     image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		front:    image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
	if opts.Workers > 0 {
		e.renderer.Workers = opts.Workers
	}
	for i := range e.players {
		e.players[i] = playback.NewPlayer(e.media, opts.Width, opts.Height, opts.FrameRate)
	}
	e.matte = playback.NewPlayer(e.media, opts.Width, opts.Height, opts.FrameRate)

	e.ctl = switcher.New(list, switcher.Options{
		GlobalDuration: opts.GlobalDuration,
		QueueEnabled:   opts.QueueEnabled,
		CurveFor:       e.curves.For,
	})
	e.sched = follow.New(list, e.ctl, e.triggers, follow.Options{
		WrapNext: opts.WrapNext,
		OnDone:   e.sourceDone,
	})
	e.runner = script.NewRunner(host{e})
	e.ctl.Subscribe(e.enqueue)
	return e
}

func (e *Engine) Controller() *switcher.Controller { return e.ctl }
func (e *Engine) Scheduler() *follow.Scheduler     { return e.sched }
func (e *Engine) Triggers() *follow.Triggers        { return e.triggers }
func (e *Engine) List() *source.List                { return e.list }
func (e *Engine) Media() *playback.Media            { return e.media }

func (e *Engine) Close() {
	e.runner.Close()
	e.curves.Close()
}

func (e *Engine) enqueue(ev switcher.Event) {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	e.inbox = append(e.inbox, ev)
}

func (e *Engine) takeInbox() []switcher.Event {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	events := e.inbox
	e.inbox = nil
	return events
}

// Run ticks at the configured frame rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / e.opts.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if err := e.Tick(ctx, t.Sub(start)); err != nil && ctx.Err() == nil {
				logrus.WithFields(logrus.Fields{
					"function": "Run",
				}).WithError(err).Error("Render failed")
			}
		}
	}
}

// Tick advances everything to now and renders one frame.
func (e *Engine) Tick(ctx context.Context, now time.Duration) error {
	e.ctl.Tick(now)
	e.apply(now)

	slot := e.ctl.SlotFlag()
	if e.players[slot].Source() != nil {
		// Errors are logged by the scheduler and never stop the loop.
		_ = e.sched.Tick(now, e.players[slot].Status(now))
		e.apply(now)
	}

	snap := e.ctl.Snapshot()
	err := e.render(ctx, snap, now)

	e.mu.Lock()
	e.now = now
	if err == nil {
		e.back, e.front = e.front, e.back
	}
	e.mu.Unlock()
	return err
}

// maxApplyRounds bounds commands that keep taking each other at zero
// duration.
const maxApplyRounds = 32

// apply handles the events raised since the last call. Running a command
// can raise more events, so it loops until none are left.
func (e *Engine) apply(now time.Duration) {
	for round := 0; ; round++ {
		events := e.takeInbox()
		if len(events) == 0 {
			return
		}
		if round == maxApplyRounds {
			logrus.WithFields(logrus.Fields{
				"function": "apply",
				"dropped":  len(events),
			}).Error("Source commands keep taking, deferring to the next tick")
			e.inboxMu.Lock()
			e.inbox = append(events, e.inbox...)
			e.inboxMu.Unlock()
			return
		}
		for _, ev := range events {
			if ev.Kind == switcher.EventRelisted {
				e.sched.Relist(ev.Target.Index, ev.Target.Name)
				continue
			}
			if ev.Kind != switcher.EventTake {
				continue
			}
			src := ev.Target.Source
			if err := e.players[ev.Slot].Load(src, now); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "apply",
					"source":   src.Name,
					"slot":     ev.Slot,
				}).WithError(err).Warn("Source failed to load, showing nothing")
			}
			e.sched.Begin(ev.Target.Index, src, now)
			if err := e.runner.Run(context.Background(), ev.Target.Index, src); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "apply",
					"source":   src.Name,
				}).WithError(err).Warn("Source command failed")
			}
		}
	}
}

func (e *Engine) render(ctx context.Context, snap switcher.Snapshot, now time.Duration) error {
	s := snap.Session
	if s == nil {
		if snap.Active == nil {
			e.renderer.Copy(e.back, nil)
			return nil
		}
		e.renderer.Copy(e.back, e.players[snap.Current].Frame(now))
		return nil
	}

	params := s.Params
	params.Blur = e.opts.Blur
	return e.renderer.Render(ctx, e.back, composite.Frame{
		Type:     s.Type,
		Outgoing: e.frameOf(s.Outgoing, s.From, now),
		Incoming: e.players[s.Incoming].Frame(now),
		Matte:    e.matteFrame(s, now),
		Progress: s.Progress.Eased,
		Params:   params,
	})
}

// frameOf returns nothing for the outgoing slot of the very first take.
func (e *Engine) frameOf(slot transition.Slot, from *switcher.Target, now time.Duration) image.Image {
	if from == nil {
		return nil
	}
	return e.players[slot].Frame(now)
}

func (e *Engine) matteFrame(s *switcher.Session, now time.Duration) image.Image {
	src := s.To.Source
	switch s.Type {
	case composite.MatteFile:
		img, err := e.media.Image(src.Transition.Matte)
		if err != nil {
			if e.matteFor != s.ID.String() {
				e.matteFor = s.ID.String()
				e.warnMatte(s, err)
			}
			return nil
		}
		return img

	case composite.MatteExternal:
		key := s.ID.String()
		if e.matteFor != key {
			e.matteFor = key
			m, _, err := e.list.Find(src.Transition.Matte)
			if err == nil {
				err = e.matte.Load(m, now)
			} else {
				e.matte.Load(nil, now)
			}
			if err != nil {
				e.warnMatte(s, err)
			}
		}
		return e.matte.Frame(now)
	}
	return nil
}

func (e *Engine) warnMatte(s *switcher.Session, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "matteFrame",
		"session":  s.ID,
		"matte":    s.To.Source.Transition.Matte,
	}).WithError(err).Warn("Matte unavailable, cutting at the first frame")
}

func (e *Engine) sourceDone(index int, src *source.Source) {
	logrus.WithFields(logrus.Fields{
		"function": "sourceDone",
		"index":    index,
		"source":   src.Name,
	}).Debug("Source done condition reached")
}

// Frame copies the last rendered frame.
func (e *Engine) Frame() *image.RGBA {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := image.NewRGBA(e.front.Bounds())
	copy(out.Pix, e.front.Pix)
	return out
}

// Now is the time of the last tick.
func (e *Engine) Now() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now
}

// Done advances the playing source as if its done condition fired.
func (e *Engine) Done() {
	e.sched.Pulse()
}

func (e *Engine) SetSignal(name string, level bool) {
	e.triggers.Set(name, level)
}

// host is what source commands can drive.
type host struct{ e *Engine }

func (h host) Take(id string, force bool) error {
	return h.e.ctl.Take(switcher.Identifier(id), force)
}

func (h host) SetSignal(name string, level bool) { h.e.SetSignal(name, level) }
func (h host) ClearPendingQueue()                { h.e.ctl.ClearPendingQueue() }
func (h host) SkipToLastPending()                { h.e.ctl.SkipToLastPending() }

// State is the operator view of the engine, served by the control surfaces.
type State struct {
	Active        *switcher.Ref   `json:"active"`
	Pending       *switcher.Ref   `json:"pending"`
	Queue         []switcher.Ref  `json:"queue"`
	Selected      int             `json:"selected"`
	Transitioning bool            `json:"transitioning"`
	Progress      float64         `json:"progress"`
	QueueEnabled  bool            `json:"queue_enabled"`
	Duration      time.Duration   `json:"global_duration"`
	Report        *follow.Report  `json:"report,omitempty"`
	Signals       map[string]bool `json:"signals"`
}

func (e *Engine) State() State {
	snap := e.ctl.Snapshot()
	st := State{
		Queue:        snap.Queue,
		Selected:     snap.Selected,
		QueueEnabled: snap.QueueEnabled,
		Duration:     e.ctl.GlobalDuration(),
		Signals:      e.triggers.Levels(),
	}
	if st.Queue == nil {
		st.Queue = []switcher.Ref{}
	}
	if snap.Active != nil {
		ref := snap.Active.Ref
		st.Active = &ref
	}
	if s := snap.Session; s != nil {
		ref := s.To.Ref
		st.Pending = &ref
		st.Transitioning = true
		st.Progress = s.Progress.Linear
	}
	if r, ok := e.sched.Report(); ok {
		st.Report = &r
	}
	return st
}
