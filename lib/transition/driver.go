package transition

import (
	"time"

	"sourcerer/lib/easing"
)

// Progress is one tick's view of a running take.
type Progress struct {
	Linear float64
	Eased  float64
	Done   bool
}

// Driver advances a take's time fraction on each tick. A zero Driver is idle.
type Driver struct {
	running  bool
	start    time.Duration
	duration time.Duration
	shape    easing.Shape
}

// Start begins a run at now. A duration of zero or less completes on the
// next tick without reporting an intermediate frame.
func (d *Driver) Start(now, duration time.Duration, shape easing.Shape) {
	d.running = true
	d.start = now
	d.duration = duration
	d.shape = shape
}

func (d *Driver) Stop() {
	*d = Driver{}
}

func (d *Driver) Running() bool { return d.running }

// Tick reports progress at now. Once Done is reported the driver returns to
// idle; ticking an idle driver reports Done with full progress.
func (d *Driver) Tick(now time.Duration) Progress {
	if !d.running || d.duration <= 0 {
		d.Stop()
		return Progress{Linear: 1, Eased: 1, Done: true}
	}
	linear := float64(now-d.start) / float64(d.duration)
	if linear < 0 {
		linear = 0
	}
	if linear >= 1 {
		d.Stop()
		return Progress{Linear: 1, Eased: 1, Done: true}
	}
	return Progress{Linear: linear, Eased: d.shape.Apply(linear)}
}
