package follow

import "sync"

// Signals exposes named external boolean inputs such as foot switches.
type Signals interface {
	Signal(name string) bool
}

// Triggers is a settable Signals set. The zero value is ready to use.
type Triggers struct {
	mu     sync.Mutex
	levels map[string]bool
}

func (t *Triggers) Set(name string, level bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.levels == nil {
		t.levels = map[string]bool{}
	}
	t.levels[name] = level
}

func (t *Triggers) Signal(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.levels[name]
}

// Levels returns a copy of every signal that has been set.
func (t *Triggers) Levels() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.levels))
	for k, v := range t.levels {
		out[k] = v
	}
	return out
}
