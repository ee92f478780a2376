package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcerer/lib/composite"
	"sourcerer/lib/easing"
)

func named(name string) *Source {
	s := Default()
	s.Name = name
	return s
}

func setupList(t *testing.T, names ...string) *List {
	t.Helper()
	var sources []*Source
	for _, n := range names {
		sources = append(sources, named(n))
	}
	l, err := NewList(sources...)
	require.NoError(t, err)
	return l
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Source)
		ok     bool
	}{
		{"default", func(s *Source) {}, true},
		{"no name", func(s *Source) { s.Name = "" }, false},
		{"unknown kind", func(s *Source) { s.Kind = "camera" }, false},
		{"generative without pattern", func(s *Source) { s.Generative = nil }, false},
		{"file without path", func(s *Source) { s.Kind = File; s.File = &FileParams{} }, false},
		{"file", func(s *Source) { s.Kind = File; s.File = &FileParams{Path: "a.png"} }, true},
		{"unknown transition", func(s *Source) { s.Transition.Type = "spin" }, false},
		{"matte without ref", func(s *Source) { s.Transition.Type = composite.MatteFile }, false},
		{"unknown shape", func(s *Source) { s.Transition.Shape = "bounce" }, false},
		{"loops on generative", func(s *Source) { s.Done = Done{On: PlayNTimes, Loops: 2} }, false},
		{"loops zero", func(s *Source) {
			s.Kind = File
			s.File = &FileParams{Path: "a.png"}
			s.Done = Done{On: PlayNTimes}
		}, false},
		{"timer zero", func(s *Source) { s.Done = Done{On: Timer} }, false},
		{"trigger without name", func(s *Source) { s.Done = Done{On: ExternalTrigger} }, false},
		{"goto_name without name", func(s *Source) { s.Follow = Follow{Action: FollowGotoName} }, false},
		{"unknown follow", func(s *Source) { s.Follow = Follow{Action: "shuffle"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidData)
			}
		})
	}
}

func TestEffectiveDuration(t *testing.T) {
	s := Default()
	s.Transition.UseGlobalDuration = true
	assert.Equal(t, 3*time.Second, s.EffectiveDuration(3*time.Second))

	s.Transition.UseGlobalDuration = false
	s.Transition.Duration = 0.5
	assert.Equal(t, 500*time.Millisecond, s.EffectiveDuration(3*time.Second))

	s.Transition.Duration = -2
	assert.Equal(t, time.Duration(0), s.EffectiveDuration(3*time.Second))
}

func TestShapeAndParams(t *testing.T) {
	s := Default()
	s.Transition.Shape = ""
	assert.Equal(t, easing.Linear, s.Shape().Kind)
	s.Transition.Type = ""
	assert.Equal(t, composite.Dissolve, s.TransitionType())

	s.Transition.Direction = [2]float64{0, -1}
	s.Transition.DipColor = [3]float64{1, 0.5, 0}
	p := s.Params()
	assert.Equal(t, composite.Vec2{X: 0, Y: -1}, p.Direction)
	assert.Equal(t, composite.Opaque(1, 0.5, 0), p.DipColor)
}

func TestListLookup(t *testing.T) {
	l := setupList(t, "intro", "loop", "outro")
	assert.Equal(t, 3, l.Count())

	s, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "loop", s.Name)

	_, err = l.Get(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)

	s, i, err := l.Find("outro")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	assert.Equal(t, "outro", s.Name)

	_, _, err = l.Find("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsCopies(t *testing.T) {
	l := setupList(t, "intro")
	s, err := l.Get(0)
	require.NoError(t, err)
	s.Name = "changed"
	assert.Equal(t, []string{"intro"}, l.Names())
}

func TestListRejectsDuplicates(t *testing.T) {
	_, err := NewList(named("a"), named("a"))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestListEditing(t *testing.T) {
	l := setupList(t, "a", "b", "c")

	i, name, err := l.Add(named("b"), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, "b 1", name)

	_, name, err = l.Add(named("b 1"), 99)
	require.NoError(t, err)
	assert.Equal(t, "b 2", name)
	assert.Equal(t, []string{"a", "b 1", "b", "c", "b 2"}, l.Names())

	require.NoError(t, l.Move(4, 0))
	assert.Equal(t, []string{"b 2", "a", "b 1", "b", "c"}, l.Names())
	require.NoError(t, l.Move(0, 4))
	assert.Equal(t, []string{"a", "b 1", "b", "c", "b 2"}, l.Names())

	require.NoError(t, l.Delete(1))
	assert.Equal(t, []string{"a", "b", "c", "b 2"}, l.Names())

	name, err = l.Rename(3, "a")
	require.NoError(t, err)
	assert.Equal(t, "a 1", name)

	name, err = l.Rename(0, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", name, "renaming to its own name keeps it")

	assert.ErrorIs(t, l.Delete(10), ErrNotFound)
	assert.ErrorIs(t, l.Move(0, 10), ErrNotFound)
	_, err = l.Rename(0, "")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestListNotifiesEdits(t *testing.T) {
	l := setupList(t, "a", "b", "c")
	var changes []Change
	l.Subscribe(func(c Change) {
		assert.NotZero(t, l.Count(), "list is readable from a subscriber")
		changes = append(changes, c)
	})

	_, _, err := l.Add(named("a"), 1)
	require.NoError(t, err)
	require.NoError(t, l.Move(0, 2))
	_, err = l.Rename(0, "z")
	require.NoError(t, err)
	require.NoError(t, l.Delete(1))
	require.NoError(t, l.Replace([]*Source{named("x")}))
	assert.Error(t, l.Delete(5))

	assert.Equal(t, []Change{
		{Kind: ChangeAdd, Index: 1, Name: "a 1"},
		{Kind: ChangeMove, Index: 0, To: 2},
		{Kind: ChangeRename, Index: 0, Name: "z"},
		{Kind: ChangeDelete, Index: 1},
		{Kind: ChangeReplace},
	}, changes, "failed edits are not reported")
}

func TestChangeRemapFollowsEdits(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	edits := []struct {
		change Change
		apply  func(l *List) error
	}{
		{Change{Kind: ChangeMove, Index: 1, To: 3}, func(l *List) error { return l.Move(1, 3) }},
		{Change{Kind: ChangeMove, Index: 4, To: 0}, func(l *List) error { return l.Move(4, 0) }},
		{Change{Kind: ChangeDelete, Index: 2}, func(l *List) error { return l.Delete(2) }},
		{Change{Kind: ChangeAdd, Index: 2}, func(l *List) error {
			_, _, err := l.Add(named("new"), 2)
			return err
		}},
	}
	for _, e := range edits {
		l := setupList(t, names...)
		require.NoError(t, e.apply(l))
		after := l.Names()
		for i, name := range names {
			j := e.change.Remap(i)
			if j < 0 {
				assert.NotContains(t, after, name)
				continue
			}
			assert.Equal(t, name, after[j], "kind %d: %q from %d", e.change.Kind, name, i)
		}
	}
	assert.Equal(t, -1, Change{Kind: ChangeReplace}.Remap(0))
	assert.Equal(t, -1, Change{Kind: ChangeAdd}.Remap(-1))
}

const listYAML = `
sources:
  - name: intro
    kind: file
    file:
      path: media/intro.png
      frames: 90
      rate: 30
    transition:
      type: dip
      dip_color: [0, 0, 0]
      duration: 1.5
      shape: half_cosine_soft
    done:
      condition: play_n_times
      loops: 2
    follow:
      action: next
  - name: bars
    kind: generative
    generative:
      pattern: bars
    transition:
      type: wipe
      direction: [-1, 0]
      use_global_duration: true
    done:
      condition: timer
      timer: 10
    follow:
      action: goto_name
      name: intro
`

func TestParseYAML(t *testing.T) {
	sources, err := Parse([]byte(listYAML))
	require.NoError(t, err)
	require.Len(t, sources, 2)

	intro := sources[0]
	assert.Equal(t, File, intro.Kind)
	assert.Equal(t, 90, intro.File.Frames)
	assert.Equal(t, composite.Dip, intro.Transition.Type)
	assert.Equal(t, 1500*time.Millisecond, intro.EffectiveDuration(time.Second))
	assert.Equal(t, easing.HalfCosineSoft, intro.Transition.Shape)
	assert.Equal(t, PlayNTimes, intro.Done.On)
	assert.Equal(t, FollowNext, intro.Follow.Action)

	bars := sources[1]
	assert.Equal(t, [2]float64{-1, 0}, bars.Transition.Direction)
	assert.Equal(t, 10*time.Second, bars.TimerDuration())
	assert.Equal(t, "intro", bars.Follow.Name)
}

func TestMarshalRoundTripsThroughParse(t *testing.T) {
	sources := GenerateMock(20, 7)
	buf, err := Marshal(sources)
	require.NoError(t, err)
	parsed, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, sources, parsed)
}

func TestLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listYAML), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"intro", "bars"}, l.Names())

	require.NoError(t, os.WriteFile(path, []byte("sources: [{name: x}]"), 0o644))
	assert.ErrorIs(t, l.Reload(path), ErrInvalidData)
	assert.Equal(t, []string{"intro", "bars"}, l.Names(), "failed reload keeps the list")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listYAML), 0o644))
	l, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx, path, nil))

	updated := `
sources:
  - name: only
    kind: generative
    generative: {pattern: solid}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.Eventually(t, func() bool {
		return l.Count() == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"only"}, l.Names())
}

func TestGenerateMockIsValid(t *testing.T) {
	sources := GenerateMock(200, 42)
	_, err := NewList(sources...)
	require.NoError(t, err)
	assert.Equal(t, sources, GenerateMock(200, 42), "same seed, same list")
}
