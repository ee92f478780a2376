// Package source holds the source model and the ordered, name-unique source
// list the switcher reads at take time.
package source

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// List is an ordered set of sources with dense indices and unique names.
// It is safe for concurrent use; Get and Find return copies.
type List struct {
	// editMu serializes edits with their notifications so subscribers see
	// changes in the order they were made.
	editMu    sync.Mutex
	mu        sync.RWMutex
	sources   []*Source
	listeners []func(Change)
}

type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeDelete
	ChangeMove
	ChangeRename
	ChangeReplace
)

// Change describes one edit. Index is the edited position and To the
// destination of a move. Name is the stored name after an add or rename.
type Change struct {
	Kind  ChangeKind
	Index int
	To    int
	Name  string
}

// Remap returns where the source at index before c sits after it, or -1
// when it was deleted. Every index maps to -1 for a replace, since the new
// list can only be matched by name.
func (c Change) Remap(index int) int {
	if index < 0 {
		return -1
	}
	switch c.Kind {
	case ChangeAdd:
		if index >= c.Index {
			return index + 1
		}
	case ChangeDelete:
		if index == c.Index {
			return -1
		}
		if index > c.Index {
			return index - 1
		}
	case ChangeMove:
		if index == c.Index {
			return c.To
		}
		if index > c.Index {
			index--
		}
		if index >= c.To {
			index++
		}
	case ChangeReplace:
		return -1
	}
	return index
}

// Subscribe registers fn for every subsequent edit. It is called after the
// list is unlocked, so it may read the list but must not edit it.
func (l *List) Subscribe(fn func(Change)) {
	l.editMu.Lock()
	defer l.editMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *List) notify(c Change) {
	for _, fn := range l.listeners {
		fn(c)
	}
}

func NewList(sources ...*Source) (*List, error) {
	l := &List{}
	if err := l.Replace(sources); err != nil {
		return nil, err
	}
	return l, nil
}

// Replace swaps in a new set of sources after validating all of them.
func (l *List) Replace(sources []*Source) error {
	seen := map[string]bool{}
	for i, s := range sources {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidData, s.Name)
		}
		seen[s.Name] = true
	}
	cloned := lo.Map(sources, func(s *Source, _ int) *Source { return s.Clone() })

	l.editMu.Lock()
	defer l.editMu.Unlock()
	l.mu.Lock()
	l.sources = cloned
	l.mu.Unlock()
	l.notify(Change{Kind: ChangeReplace})
	return nil
}

func (l *List) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sources)
}

func (l *List) Get(index int) (*Source, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.sources) {
		return nil, fmt.Errorf("%w: index %d out of range (%d sources)", ErrNotFound, index, len(l.sources))
	}
	return l.sources[index].Clone(), nil
}

// Find looks a source up by exact name.
func (l *List) Find(name string) (*Source, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexOf(name)
	if i < 0 {
		return nil, -1, fmt.Errorf("%w: no source named %q", ErrNotFound, name)
	}
	return l.sources[i].Clone(), i, nil
}

func (l *List) indexOf(name string) int {
	_, i, ok := lo.FindIndexOf(l.sources, func(s *Source) bool { return s.Name == name })
	if !ok {
		return -1
	}
	return i
}

func (l *List) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Map(l.sources, func(s *Source, _ int) string { return s.Name })
}

// All returns copies of every source in index order.
func (l *List) All() []*Source {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Map(l.sources, func(s *Source, _ int) *Source { return s.Clone() })
}

// Add inserts s at index (clamped to the list) and returns the index and
// the name it was stored under, suffixed if needed to stay unique.
func (l *List) Add(s *Source, index int) (int, string, error) {
	if err := s.Validate(); err != nil {
		return -1, "", err
	}
	l.editMu.Lock()
	defer l.editMu.Unlock()

	l.mu.Lock()
	s = s.Clone()
	s.Name = l.uniqueName(s.Name, -1)
	index = lo.Clamp(index, 0, len(l.sources))
	l.sources = append(l.sources[:index], append([]*Source{s}, l.sources[index:]...)...)
	l.mu.Unlock()

	l.notify(Change{Kind: ChangeAdd, Index: index, Name: s.Name})
	return index, s.Name, nil
}

func (l *List) Delete(index int) error {
	l.editMu.Lock()
	defer l.editMu.Unlock()

	l.mu.Lock()
	if index < 0 || index >= len(l.sources) {
		l.mu.Unlock()
		return fmt.Errorf("%w: index %d out of range", ErrNotFound, index)
	}
	l.sources = append(l.sources[:index], l.sources[index+1:]...)
	l.mu.Unlock()

	l.notify(Change{Kind: ChangeDelete, Index: index})
	return nil
}

// Move takes the source at from out of the list and reinserts it so that
// it ends up at index to.
func (l *List) Move(from, to int) error {
	l.editMu.Lock()
	defer l.editMu.Unlock()

	l.mu.Lock()
	n := len(l.sources)
	if from < 0 || from >= n || to < 0 || to >= n {
		l.mu.Unlock()
		return fmt.Errorf("%w: move %d -> %d out of range", ErrNotFound, from, to)
	}
	s := l.sources[from]
	rest := append(l.sources[:from:from], l.sources[from+1:]...)
	l.sources = append(rest[:to:to], append([]*Source{s}, rest[to:]...)...)
	l.mu.Unlock()

	l.notify(Change{Kind: ChangeMove, Index: from, To: to})
	return nil
}

// Rename gives the source at index a new unique name and returns it.
func (l *List) Rename(index int, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidData)
	}
	l.editMu.Lock()
	defer l.editMu.Unlock()

	l.mu.Lock()
	if index < 0 || index >= len(l.sources) {
		l.mu.Unlock()
		return "", fmt.Errorf("%w: index %d out of range", ErrNotFound, index)
	}
	name = l.uniqueName(name, index)
	l.sources[index].Name = name
	l.mu.Unlock()

	l.notify(Change{Kind: ChangeRename, Index: index, Name: name})
	return name, nil
}

// uniqueName returns name, or name with the lowest free numeric suffix
// ("clip 1", "clip 2", ...) when another source already uses it.
func (l *List) uniqueName(name string, exclude int) string {
	taken := map[string]bool{}
	for i, s := range l.sources {
		if i != exclude {
			taken[s.Name] = true
		}
	}
	if !taken[name] {
		return name
	}
	base := strings.TrimRight(name, "0123456789 ")
	if base == "" {
		base = name
	}
	for i := 1; ; i++ {
		candidate := base + " " + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}
