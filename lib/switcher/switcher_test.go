package switcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcerer/lib/source"
	"sourcerer/lib/transition"
)

func timed(name string, seconds float64) *source.Source {
	s := source.Default()
	s.Name = name
	s.Transition.UseGlobalDuration = false
	s.Transition.Duration = seconds
	return s
}

type recorder struct {
	events []Event
}

func (r *recorder) kinds() []EventKind {
	kinds := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func setupTest(t *testing.T, queue bool, sources ...*source.Source) (*Controller, *recorder) {
	t.Helper()
	if len(sources) == 0 {
		sources = []*source.Source{timed("A", 1), timed("B", 1), timed("C", 1), timed("D", 1)}
	}
	list, err := source.NewList(sources...)
	require.NoError(t, err)

	c := New(list, Options{GlobalDuration: 2 * time.Second, QueueEnabled: queue})
	rec := &recorder{}
	c.Subscribe(func(ev Event) { rec.events = append(rec.events, ev) })
	return c, rec
}

func activeRef(t *testing.T, c *Controller) Ref {
	t.Helper()
	a, ok := c.Active()
	require.True(t, ok, "no active source")
	return a.Ref
}

func TestImmediateTake(t *testing.T) {
	c, rec := setupTest(t, true, timed("A", 0), timed("B", 0))

	require.NoError(t, c.Take(ByIndex(1), false))
	assert.False(t, c.IsTransitioning())
	assert.Equal(t, Ref{Index: 1, Name: "B"}, activeRef(t, c))
	assert.Equal(t, transition.SlotB, c.SlotFlag())
	assert.Equal(t, []EventKind{EventTake, EventComplete}, rec.kinds())
}

func TestTakeBlendsThenActivates(t *testing.T) {
	c, rec := setupTest(t, true)

	require.NoError(t, c.Take(ByName("B"), false))
	assert.True(t, c.IsTransitioning())
	_, ok := c.Active()
	assert.False(t, ok, "active changes on completion")
	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "B", pending.Name)

	snap := c.Tick(500 * time.Millisecond)
	require.NotNil(t, snap.Session)
	assert.InDelta(t, 0.5, snap.Session.Progress.Linear, 1e-9)
	assert.Equal(t, transition.SlotA, snap.Session.Outgoing)
	assert.Equal(t, transition.SlotB, snap.Session.Incoming)
	assert.Equal(t, "B", snap.Slots[transition.SlotB].Name)

	snap = c.Tick(time.Second)
	assert.Nil(t, snap.Session)
	require.NotNil(t, snap.Active)
	assert.Equal(t, Ref{Index: 1, Name: "B"}, snap.Active.Ref)
	assert.Equal(t, []EventKind{EventTake, EventComplete}, rec.kinds())
}

func TestGlobalDuration(t *testing.T) {
	s := timed("G", 5)
	s.Transition.UseGlobalDuration = true
	c, _ := setupTest(t, true, s)

	require.NoError(t, c.Take(ByIndex(0), false))
	snap := c.Snapshot()
	require.NotNil(t, snap.Session)
	assert.Equal(t, 2*time.Second, snap.Session.Duration)
}

func TestSlotFlagParity(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 1), timed("C", 0))

	requests := []struct {
		req   Request
		force bool
	}{
		{ByIndex(0), false},
		{ByIndex(1), false},
		{ByIndex(2), true},
		{ByIndex(1), true},
		{ByIndex(0), true},
		{ByIndex(2), false},
	}
	for i, r := range requests {
		require.NoError(t, c.Take(r.req, r.force))
		assert.Equal(t, transition.Slot((i+1)%2), c.SlotFlag(), "after %d takes", i+1)
	}
}

func TestSlotFlagParityThroughQueue(t *testing.T) {
	c, _ := setupTest(t, true)
	for _, name := range []string{"A", "B", "C", "D", "A"} {
		require.NoError(t, c.Take(ByName(name), false))
	}
	for now := time.Second; c.IsTransitioning(); now += time.Second {
		c.Tick(now)
	}
	assert.Equal(t, transition.Slot(5%2), c.SlotFlag())
	assert.Equal(t, "A", activeRef(t, c).Name)
}

func TestQueueDrainsOnCompletion(t *testing.T) {
	c, _ := setupTest(t, true)

	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByName("C"), false))
	assert.True(t, c.IsTransitioning())
	assert.Len(t, c.Queue(), 2)

	c.Tick(time.Second)
	assert.Equal(t, "A", activeRef(t, c).Name)
	assert.Equal(t, []Ref{{Index: 2, Name: "C"}}, c.Queue())
	pending, _ := c.Pending()
	assert.Equal(t, "B", pending.Name)

	c.Tick(2 * time.Second)
	assert.Empty(t, c.Queue())
	pending, _ = c.Pending()
	assert.Equal(t, "C", pending.Name)

	c.Tick(3 * time.Second)
	assert.False(t, c.IsTransitioning())
	assert.Equal(t, Ref{Index: 2, Name: "C"}, activeRef(t, c))
}

func TestQueueSuppressesRepeatedTail(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByName("C"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	assert.Equal(t, []string{"B", "C", "B"}, names(c.Queue()))

	for now := time.Second; c.IsTransitioning(); now += time.Second {
		c.Tick(now)
	}
	assert.Equal(t, transition.Slot(4%2), c.SlotFlag(), "the suppressed take never started")
}

func names(refs []Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func TestForceClearsQueueAndSwitchesImmediately(t *testing.T) {
	c, rec := setupTest(t, true, timed("A", 1), timed("B", 1), timed("C", 1), timed("D", 0))
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByName("C"), false))
	rec.events = nil

	require.NoError(t, c.Take(ByName("D"), true))
	assert.Empty(t, c.Queue())
	assert.False(t, c.IsTransitioning())
	assert.Equal(t, "D", activeRef(t, c).Name)
	assert.Equal(t, []EventKind{EventQueueChanged, EventInterrupted, EventTake, EventComplete}, rec.kinds())
	assert.Equal(t, "A", rec.events[1].Target.Name, "interrupted session promotes its own target")
}

func TestForceStartsNewSession(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	c.Tick(300 * time.Millisecond)

	require.NoError(t, c.Take(ByName("C"), true))
	assert.Empty(t, c.Queue())
	assert.True(t, c.IsTransitioning())
	assert.Equal(t, "A", activeRef(t, c).Name)
	pending, _ := c.Pending()
	assert.Equal(t, "C", pending.Name)

	snap := c.Tick(800 * time.Millisecond)
	require.NotNil(t, snap.Session)
	assert.InDelta(t, 0.5, snap.Session.Progress.Linear, 1e-9, "forced session starts at the forcing tick")
	require.NotNil(t, snap.Session.From)
	assert.Equal(t, "A", snap.Session.From.Name)
}

func TestQueueDisabledInterrupts(t *testing.T) {
	c, rec := setupTest(t, false)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))

	assert.Empty(t, c.Queue())
	assert.Equal(t, "A", activeRef(t, c).Name)
	pending, _ := c.Pending()
	assert.Equal(t, "B", pending.Name)
	assert.Equal(t, []EventKind{EventTake, EventInterrupted, EventTake}, rec.kinds())
}

func TestQueueDisabledKeepsExistingEntries(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	c.SetQueueEnabled(false)
	assert.False(t, c.IsQueueEnabled())

	require.NoError(t, c.Take(ByName("C"), false))
	assert.Equal(t, []string{"B"}, names(c.Queue()))
	pending, _ := c.Pending()
	assert.Equal(t, "C", pending.Name)

	c.Tick(time.Second)
	assert.Equal(t, "C", activeRef(t, c).Name)
	pending, _ = c.Pending()
	assert.Equal(t, "B", pending.Name)
}

func TestSkipToLastPending(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	for _, n := range []string{"B", "C", "D"} {
		require.NoError(t, c.Take(ByName(n), false))
	}
	require.Equal(t, []string{"B", "C", "D"}, names(c.Queue()))

	c.SkipToLastPending()
	assert.Equal(t, []Ref{{Index: 3, Name: "D"}}, c.Queue())
	assert.True(t, c.IsTransitioning())

	c.Tick(time.Second)
	c.Tick(2 * time.Second)
	assert.Equal(t, "D", activeRef(t, c).Name)
}

func TestClearPendingQueueKeepsSession(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))

	c.ClearPendingQueue()
	assert.Empty(t, c.Queue())
	assert.True(t, c.IsTransitioning())
	c.Tick(time.Second)
	assert.False(t, c.IsTransitioning())
	assert.Equal(t, "A", activeRef(t, c).Name)
}

func TestTakeErrorsLeaveStateUnchanged(t *testing.T) {
	c, rec := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	before := c.Snapshot()
	rec.events = nil

	broken := source.Default()
	broken.Kind = source.File

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"index", ByIndex(9), ErrSourceNotFound},
		{"negative index", ByIndex(-1), ErrSourceNotFound},
		{"name", ByName("nope"), ErrSourceNotFound},
		{"identifier", Identifier("nope"), ErrSourceNotFound},
		{"invalid data", Temporary(broken), ErrInvalidSourceData},
		{"nil data", Temporary(nil), ErrInvalidSourceData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, force := range []bool{false, true} {
				err := c.Take(tt.req, force)
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, before, c.Snapshot())
		})
	}
	assert.Empty(t, rec.events)
}

func TestTemporarySource(t *testing.T) {
	c, _ := setupTest(t, true)
	tmp := timed("scratch", 0)

	require.NoError(t, c.Take(Temporary(tmp), false))
	a := activeRef(t, c)
	assert.Equal(t, TemporaryIndex, a.Index)
	assert.Equal(t, "scratch", a.Name)
	assert.True(t, a.IsTemporary())
}

func TestIdentifierResolution(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("7", 0), timed("B", 0))

	require.NoError(t, c.Take(Identifier("2"), false))
	assert.Equal(t, Ref{Index: 2, Name: "B"}, activeRef(t, c))

	require.NoError(t, c.Take(Identifier("7"), false))
	assert.Equal(t, Ref{Index: 1, Name: "7"}, activeRef(t, c), "out of range index falls back to name")

	require.NoError(t, c.Take(Identifier("A"), false))
	assert.Equal(t, Ref{Index: 0, Name: "A"}, activeRef(t, c))
}

func TestQueuedTakeResolvedAtStart(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByName("D"), false))

	require.NoError(t, c.List().Delete(1))
	c.Tick(time.Second)

	assert.Equal(t, "A", activeRef(t, c).Name)
	pending, ok := c.Pending()
	require.True(t, ok, "missing entry is skipped and draining continues")
	assert.Equal(t, Ref{Index: 2, Name: "D"}, pending.Ref)
}

func TestDelayTake(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 0))

	require.NoError(t, c.DelayTake(ByName("B"), 2))
	c.Tick(time.Second / 30)
	_, ok := c.Active()
	assert.False(t, ok)

	c.Tick(2 * time.Second / 30)
	assert.Equal(t, "B", activeRef(t, c).Name)

	assert.ErrorIs(t, c.DelayTake(ByName("nope"), 2), ErrSourceNotFound)
}

func TestSelection(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 0), timed("C", 0))

	assert.Equal(t, 0, c.SelectUp())
	assert.Equal(t, 1, c.SelectDown())
	assert.Equal(t, 2, c.SelectDown())
	assert.Equal(t, 2, c.SelectDown())
	assert.ErrorIs(t, c.Select(3), ErrSourceNotFound)
	require.NoError(t, c.Select(1))

	assert.False(t, c.SelectedIsActive())
	require.NoError(t, c.TakeSelected(false))
	assert.Equal(t, "B", activeRef(t, c).Name)
	assert.True(t, c.SelectedIsActive())
}

func TestListenerMayCallBack(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 0))
	var seen []string
	c.Subscribe(func(ev Event) {
		if ev.Kind != EventComplete {
			return
		}
		a, _ := c.Active()
		seen = append(seen, a.Name)
		if a.Name == "A" {
			assert.NoError(t, c.Take(ByName("B"), false))
		}
	})

	require.NoError(t, c.Take(ByName("A"), false))
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestDeletingActiveSourceLeavesItTemporary(t *testing.T) {
	c, rec := setupTest(t, true, timed("A", 0), timed("B", 0), timed("C", 0))
	require.NoError(t, c.Take(ByName("C"), false))
	require.NoError(t, c.Select(2))

	require.NoError(t, c.List().Delete(0))
	assert.Equal(t, Ref{Index: 1, Name: "C"}, activeRef(t, c))
	assert.Equal(t, 1, c.Selected())
	assert.True(t, c.SelectedIsActive())

	require.NoError(t, c.List().Delete(1))
	active := activeRef(t, c)
	assert.True(t, active.IsTemporary())
	assert.Equal(t, "C", active.Name)
	assert.Equal(t, 0, c.Selected())
	assert.False(t, c.SelectedIsActive())

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventRelisted, last.Kind)
	assert.Equal(t, TemporaryIndex, last.Target.Index)
}

func TestMovingSourcesKeepsReferences(t *testing.T) {
	c, _ := setupTest(t, true)
	require.NoError(t, c.Take(ByName("A"), false))
	c.Tick(time.Second)
	require.NoError(t, c.Take(ByName("B"), false))
	require.NoError(t, c.Take(ByIndex(3), false))

	require.NoError(t, c.List().Move(0, 2))
	names := c.List().Names()
	require.Equal(t, []string{"B", "C", "A", "D"}, names)

	snap := c.Snapshot()
	require.NotNil(t, snap.Session)
	assert.Equal(t, Ref{Index: 2, Name: "A"}, snap.Session.From.Ref)
	assert.Equal(t, Ref{Index: 0, Name: "B"}, snap.Session.To.Ref)
	assert.Equal(t, Ref{Index: 2, Name: "A"}, snap.Active.Ref)
	for _, slot := range snap.Slots {
		require.NotNil(t, slot)
		assert.Equal(t, names[slot.Index], slot.Name)
	}
	assert.Equal(t, []Ref{{Index: 3, Name: "D"}}, c.Queue())

	require.NoError(t, c.List().Delete(3))
	assert.Empty(t, c.Queue(), "queued take of a deleted source is dropped")
}

func TestRenamingActiveSource(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 0))
	require.NoError(t, c.Take(ByName("B"), false))

	_, err := c.List().Rename(1, "Bee")
	require.NoError(t, err)
	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, Ref{Index: 1, Name: "Bee"}, active.Ref)
	assert.Equal(t, "Bee", active.Source.Name)
}

func TestReloadMatchesActiveByName(t *testing.T) {
	c, _ := setupTest(t, true, timed("A", 0), timed("B", 0))
	require.NoError(t, c.Take(ByName("B"), false))

	require.NoError(t, c.List().Replace([]*source.Source{timed("Z", 0), timed("Y", 0), timed("B", 0)}))
	assert.Equal(t, Ref{Index: 2, Name: "B"}, activeRef(t, c))

	require.NoError(t, c.List().Replace([]*source.Source{timed("Z", 0)}))
	active := activeRef(t, c)
	assert.True(t, active.IsTemporary())
	assert.Equal(t, "B", active.Name)
	assert.Equal(t, 0, c.Selected())
}
