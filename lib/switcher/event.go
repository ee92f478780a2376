package switcher

import (
	"github.com/google/uuid"

	"sourcerer/lib/transition"
)

type EventKind int

const (
	// EventTake is sent when a take starts, before any blending.
	EventTake EventKind = iota
	// EventComplete is sent when the target becomes active at the end of a
	// blend or at once for a zero duration.
	EventComplete
	// EventInterrupted is sent when force or an unqueued take cuts a blend.
	// The target is active from this point.
	EventInterrupted
	EventQueued
	EventQueueChanged
	// EventRelisted is sent after a list edit moved, renamed or removed
	// sources. Target is the most recently taken source with its new
	// reference, index -1 when it is no longer in the list.
	EventRelisted
)

var eventNames = map[EventKind]string{
	EventTake:         "take",
	EventComplete:     "complete",
	EventInterrupted:  "interrupted",
	EventQueued:       "queued",
	EventQueueChanged: "queue_changed",
	EventRelisted:     "relisted",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

type Event struct {
	Kind    EventKind
	Target  Target
	Session uuid.UUID
	Slot    transition.Slot
	Queue   []Ref
}

// Listener receives events outside the Controller lock, in order.
type Listener func(Event)

func (c *Controller) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}
