package switcher

import (
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"sourcerer/lib/source"
)

// listChanged keeps every index the Controller holds pointing at the same
// source after a list edit. A source that left the list keeps playing as if
// it were temporary.
func (c *Controller) listChanged(ch source.Change) {
	c.mu.Lock()
	c.active = c.relist(c.active, ch)
	for i := range c.inSlot {
		c.inSlot[i] = c.relist(c.inSlot[i], ch)
	}
	if c.session != nil {
		s := *c.session
		s.From = c.relist(s.From, ch)
		s.To = *c.relist(&s.To, ch)
		c.session = &s
	}
	c.selected = c.relistSelected(ch)

	var events []Event
	if c.relistQueue(ch) {
		events = append(events, c.queueChanged())
	}
	if t := c.latest(); t != nil {
		logrus.WithFields(logrus.Fields{
			"function": "listChanged",
			"target":   t.Ref.String(),
		}).Debug("Source list edited")
		events = append(events, Event{Kind: EventRelisted, Target: *t})
	}
	c.mu.Unlock()
	c.dispatch(events)
}

// latest is the source of the most recent take.
func (c *Controller) latest() *Target {
	if c.session != nil {
		return &c.session.To
	}
	return c.active
}

func (c *Controller) relist(t *Target, ch source.Change) *Target {
	if t == nil || t.IsTemporary() {
		return t
	}
	out := *t
	if ch.Kind == source.ChangeReplace {
		out.Index = TemporaryIndex
		if _, i, err := c.list.Find(t.Name); err == nil {
			out.Index = i
		}
		return &out
	}

	out.Index = ch.Remap(t.Index)
	if out.Index < 0 {
		out.Index = TemporaryIndex
	} else if ch.Kind == source.ChangeRename && out.Index == ch.Index {
		out.Name = ch.Name
		if out.Source != nil {
			out.Source = out.Source.Clone()
			out.Source.Name = ch.Name
		}
	}
	return &out
}

// relistSelected keeps the selection on its source, or on the entry that
// took the place of a deleted one.
func (c *Controller) relistSelected(ch source.Change) int {
	last := max(0, c.list.Count()-1)
	if ch.Kind == source.ChangeReplace {
		return lo.Clamp(c.selected, 0, last)
	}
	if i := ch.Remap(c.selected); i >= 0 {
		return lo.Clamp(i, 0, last)
	}
	return lo.Clamp(ch.Index, 0, last)
}

// relistQueue remaps queued and delayed index requests. Requests for a
// deleted source are dropped. It reports whether the queue changed.
func (c *Controller) relistQueue(ch source.Change) bool {
	if ch.Kind == source.ChangeReplace || ch.Kind == source.ChangeRename {
		return false
	}
	remap := func(r Request) (Request, bool) {
		if r.kind != byIndex {
			return r, true
		}
		r.index = ch.Remap(r.index)
		return r, r.index >= 0
	}

	changed := false
	queue := c.queue[:0]
	for _, r := range c.queue {
		nr, ok := remap(r)
		if ok {
			queue = append(queue, nr)
		}
		changed = changed || !ok || nr != r
	}
	c.queue = queue

	delays := c.delays[:0]
	for _, d := range c.delays {
		if nr, ok := remap(d.req); ok {
			d.req = nr
			delays = append(delays, d)
		}
	}
	c.delays = delays
	return changed
}
