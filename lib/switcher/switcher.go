// Package switcher is the take state machine: it owns the active source,
// the live transition session, the pending queue and the slot flag.
//
// All mutation happens under one mutex, so takes from the tick loop, the
// follow scheduler and the control surfaces never interleave. Listeners are
// called after the mutex is released and may call back into the Controller.
package switcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"sourcerer/lib/composite"
	"sourcerer/lib/easing"
	"sourcerer/lib/source"
	"sourcerer/lib/transition"
)

var (
	ErrSourceNotFound    = source.ErrNotFound
	ErrInvalidSourceData = source.ErrInvalidData
)

type Options struct {
	// GlobalDuration applies to sources with use_global_duration set.
	GlobalDuration time.Duration
	QueueEnabled   bool
	// CurveFor supplies the sampled curve for the custom easing kind.
	CurveFor func(*source.Source) easing.Curve
}

// Session is one live blend from the previously active source into To.
type Session struct {
	ID       uuid.UUID
	From     *Target
	To       Target
	Outgoing transition.Slot
	Incoming transition.Slot
	Type     composite.Type
	Params   composite.Params
	Duration time.Duration
	Progress transition.Progress
}

// Snapshot is the Controller state after a tick.
type Snapshot struct {
	Active       *Target
	Session      *Session
	Queue        []Ref
	Slots        [2]*Target
	Current      transition.Slot
	Selected     int
	QueueEnabled bool
}

type delayed struct {
	req    Request
	frames int
}

type Controller struct {
	mu   sync.Mutex
	list *source.List
	opts Options

	slots   transition.Slots
	driver  transition.Driver
	now     time.Duration
	active  *Target
	inSlot  [2]*Target
	session *Session
	queue   []Request
	delays  []delayed

	selected  int
	listeners []Listener
}

func New(list *source.List, opts Options) *Controller {
	c := &Controller{
		list: list,
		opts: opts,
	}
	list.Subscribe(c.listChanged)
	return c
}

func (c *Controller) List() *source.List { return c.list }

// Subscribe registers l for every subsequent event.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Take switches to req. When force is set the queue is cleared and any live
// session is cut to its target first. Otherwise a live session either queues
// req or is interrupted by it, depending on whether queueing is enabled.
//
// req is resolved before anything changes; a bad index, name or inline
// source returns an error with the Controller untouched. A queued req equal
// to the current tail of the queue is dropped and never starts, so it does
// not flip the slot flag.
func (c *Controller) Take(req Request, force bool) error {
	c.mu.Lock()
	events, err := c.take(req, force)
	c.mu.Unlock()
	c.dispatch(events)
	return err
}

func (c *Controller) take(req Request, force bool) ([]Event, error) {
	target, err := req.resolve(c.list)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Take",
			"request":  req.String(),
			"force":    force,
		}).WithError(err).Warn("Take rejected")
		return nil, fmt.Errorf("switcher: take %s: %w", req, err)
	}

	var events []Event
	switch {
	case force:
		if len(c.queue) > 0 {
			c.queue = nil
			events = append(events, c.queueChanged())
		}
		if c.session != nil {
			events = append(events, c.interrupt())
		}
		events = append(events, c.start(target)...)

	case c.session != nil && c.opts.QueueEnabled:
		if len(c.queue) > 0 && c.queue[len(c.queue)-1].equal(req) {
			logrus.WithFields(logrus.Fields{
				"function": "Take",
				"request":  req.String(),
			}).Debug("Take already at the end of the queue")
			return events, nil
		}
		c.queue = append(c.queue, req)
		logrus.WithFields(logrus.Fields{
			"function": "Take",
			"request":  req.String(),
			"queued":   len(c.queue),
		}).Info("Take queued")
		events = append(events, Event{Kind: EventQueued, Target: target}, c.queueChanged())

	case c.session != nil:
		events = append(events, c.interrupt())
		events = append(events, c.start(target)...)

	default:
		events = append(events, c.start(target)...)
	}

	return append(events, c.drain()...), nil
}

// start allocates slots and begins a session for target, or switches
// immediately when its duration is not positive.
func (c *Controller) start(target Target) []Event {
	outgoing, incoming := c.slots.Allocate()
	c.inSlot[incoming] = &target

	src := target.Source
	shape := src.Shape()
	if shape.Kind == easing.Custom && c.opts.CurveFor != nil {
		shape.Curve = c.opts.CurveFor(src)
	}

	s := &Session{
		ID:       uuid.New(),
		From:     c.active,
		To:       target,
		Outgoing: outgoing,
		Incoming: incoming,
		Type:     src.TransitionType(),
		Params:   src.Params(),
		Duration: src.EffectiveDuration(c.opts.GlobalDuration),
	}

	logrus.WithFields(logrus.Fields{
		"function": "Take",
		"session":  s.ID,
		"target":   target.Ref.String(),
		"type":     s.Type,
		"duration": s.Duration,
		"incoming": incoming,
	}).Info("Take started")

	events := []Event{{Kind: EventTake, Target: target, Session: s.ID, Slot: incoming}}
	if s.Duration <= 0 {
		s.Progress = transition.Progress{Linear: 1, Eased: 1, Done: true}
		c.active = &target
		return append(events, Event{Kind: EventComplete, Target: target, Session: s.ID, Slot: incoming})
	}
	c.driver.Start(c.now, s.Duration, shape)
	c.session = s
	return events
}

// interrupt cuts the live session, promoting its target to active.
func (c *Controller) interrupt() Event {
	s := c.session
	c.driver.Stop()
	c.session = nil
	c.active = &s.To

	logrus.WithFields(logrus.Fields{
		"function": "Take",
		"session":  s.ID,
		"target":   s.To.Ref.String(),
		"progress": s.Progress.Linear,
	}).Info("Transition interrupted")
	return Event{Kind: EventInterrupted, Target: s.To, Session: s.ID, Slot: s.Incoming}
}

func (c *Controller) complete() Event {
	s := c.session
	c.session = nil
	c.active = &s.To

	logrus.WithFields(logrus.Fields{
		"function": "Tick",
		"session":  s.ID,
		"target":   s.To.Ref.String(),
	}).Info("Transition complete")
	return Event{Kind: EventComplete, Target: s.To, Session: s.ID, Slot: s.Incoming}
}

// drain starts queued takes until one leaves a session live or the queue
// is empty. Entries that no longer resolve are dropped and logged.
func (c *Controller) drain() []Event {
	var events []Event
	for c.session == nil && len(c.queue) > 0 {
		req := c.queue[0]
		c.queue = lo.Drop(c.queue, 1)
		events = append(events, c.queueChanged())

		target, err := req.resolve(c.list)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "drain",
				"request":  req.String(),
			}).WithError(err).Error("Queued take no longer resolves, skipping")
			continue
		}
		events = append(events, c.start(target)...)
	}
	return events
}

func (c *Controller) queueChanged() Event {
	return Event{Kind: EventQueueChanged, Queue: c.queueRefs()}
}

func (c *Controller) queueRefs() []Ref {
	return lo.Map(c.queue, func(r Request, _ int) Ref {
		if t, err := r.resolve(c.list); err == nil {
			return t.Ref
		}
		if r.kind == byIndex {
			return Ref{Index: r.index}
		}
		return Ref{Index: TemporaryIndex, Name: r.name}
	})
}

// Tick advances the live session and any delayed takes to now.
func (c *Controller) Tick(now time.Duration) Snapshot {
	c.mu.Lock()
	c.now = now

	var events []Event
	if c.session != nil {
		p := c.driver.Tick(now)
		c.session.Progress = p
		if p.Done {
			events = append(events, c.complete())
			events = append(events, c.drain()...)
		}
	}
	events = append(events, c.tickDelays()...)

	snap := c.snapshot()
	c.mu.Unlock()
	c.dispatch(events)
	return snap
}

func (c *Controller) tickDelays() []Event {
	var due []Request
	kept := c.delays[:0]
	for _, d := range c.delays {
		d.frames--
		if d.frames <= 0 {
			due = append(due, d.req)
		} else {
			kept = append(kept, d)
		}
	}
	c.delays = kept

	var events []Event
	for _, req := range due {
		ev, err := c.take(req, false)
		if err != nil {
			continue
		}
		events = append(events, ev...)
	}
	return events
}

// DelayTake issues a normal take for req after frames ticks. req is checked
// now and resolved again when it fires.
func (c *Controller) DelayTake(req Request, frames int) error {
	if frames <= 0 {
		return c.Take(req, false)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := req.resolve(c.list); err != nil {
		return fmt.Errorf("switcher: delay take %s: %w", req, err)
	}
	c.delays = append(c.delays, delayed{req: req, frames: frames})
	return nil
}

// ClearPendingQueue empties the queue. A live session keeps running.
func (c *Controller) ClearPendingQueue() {
	c.mu.Lock()
	var events []Event
	if len(c.queue) > 0 {
		c.queue = nil
		events = append(events, c.queueChanged())
	}
	c.mu.Unlock()
	c.dispatch(events)
}

// SkipToLastPending drops every queued take except the last.
func (c *Controller) SkipToLastPending() {
	c.mu.Lock()
	var events []Event
	if len(c.queue) > 1 {
		c.queue = lo.Drop(c.queue, len(c.queue)-1)
		events = append(events, c.queueChanged())
	}
	c.mu.Unlock()
	c.dispatch(events)
}

func (c *Controller) SetQueueEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.QueueEnabled = enabled
}

func (c *Controller) SetGlobalDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.GlobalDuration = d
}

func (c *Controller) GlobalDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.GlobalDuration
}

func (c *Controller) Select(index int) error {
	if index < 0 || index >= c.list.Count() {
		return fmt.Errorf("switcher: select %d: %w", index, ErrSourceNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = index
	return nil
}

func (c *Controller) SelectUp() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = max(0, c.selected-1)
	return c.selected
}

func (c *Controller) SelectDown() int {
	n := c.list.Count()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = lo.Clamp(c.selected+1, 0, max(0, n-1))
	return c.selected
}

func (c *Controller) TakeSelected(force bool) error {
	c.mu.Lock()
	index := c.selected
	c.mu.Unlock()
	return c.Take(ByIndex(index), force)
}

func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectedIsActive reports whether the selection is the active list entry.
func (c *Controller) SelectedIsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.Index == c.selected
}

// Active returns the source that most recently finished switching in.
func (c *Controller) Active() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Target{}, false
	}
	return *c.active, true
}

// Pending returns the incoming target of the live session.
func (c *Controller) Pending() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Target{}, false
	}
	return c.session.To, true
}

func (c *Controller) Queue() []Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueRefs()
}

func (c *Controller) IsTransitioning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Controller) IsQueueEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.QueueEnabled
}

// SlotFlag is the slot holding the most recently taken source.
func (c *Controller) SlotFlag() transition.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots.Current()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		Queue:        c.queueRefs(),
		Slots:        c.inSlot,
		Current:      c.slots.Current(),
		Selected:     c.selected,
		QueueEnabled: c.opts.QueueEnabled,
	}
	if c.active != nil {
		a := *c.active
		snap.Active = &a
	}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
	}
	return snap
}
