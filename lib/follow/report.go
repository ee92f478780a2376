package follow

import (
	"fmt"
	"math"
	"time"

	"sourcerer/lib/source"
)

// Report describes the playing source for operators.
type Report struct {
	Index          int           `json:"index"`
	Name           string        `json:"name"`
	Condition      source.DoneOn `json:"condition"`
	Timecode       string        `json:"timecode"`
	Elapsed        time.Duration `json:"elapsed"`
	Remaining      time.Duration `json:"remaining"`
	Loop           int           `json:"loop"`
	LoopsRemaining int           `json:"loops_remaining"`
	Progress       float64       `json:"progress"`
	Next           string        `json:"next,omitempty"`
	Done           bool          `json:"done"`
}

// Report returns the state of the playing source, and false when nothing
// is playing.
func (s *Scheduler) Report() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return Report{}, false
	}

	st := s.status
	r := Report{
		Index:     s.index,
		Name:      s.src.Name,
		Condition: s.src.Done.On,
		Elapsed:   st.Played,
		Timecode:  Timecode(st.Played, st.Rate),
		Loop:      st.Loops,
		Done:      s.fired,
	}

	var total time.Duration
	switch s.src.Done.On {
	case source.PlayNTimes:
		total = time.Duration(s.src.Done.Loops) * st.LoopLength
		r.LoopsRemaining = max(0, s.src.Done.Loops-st.Loops)
	case source.Timer:
		total = s.src.TimerDuration()
		r.Elapsed = s.now - s.began
	}
	if total > 0 {
		r.Remaining = max(0, total-r.Elapsed)
		r.Progress = math.Min(100, 100*float64(r.Elapsed)/float64(total))
	}

	if req, err := s.followRequest(); err == nil {
		if next, err := s.resolve(req); err == nil {
			r.Next = next.Name
		}
	}
	return r, true
}

// Timecode formats d as HH:MM:SS:FF at rate frames per second.
func Timecode(d time.Duration, rate float64) string {
	if d < 0 {
		d = 0
	}
	if rate <= 0 {
		rate = 30
	}
	secs := int64(d / time.Second)
	frac := (d % time.Second).Seconds()
	frames := int(math.Floor(frac*rate + 1e-6))
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, frames)
}
