package surface

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"sourcerer/lib/switcher"
)

// Controls is the switcher side of the surface. *switcher.Controller
// implements it.
type Controls interface {
	Take(req switcher.Request, force bool) error
	TakeSelected(force bool) error
	SelectUp() int
	SelectDown() int
	ClearPendingQueue()
	SkipToLastPending()
	SetGlobalDuration(d time.Duration)
	GlobalDuration() time.Duration
}

// Operator is the engine side: done pulses and trigger signals.
type Operator interface {
	Done()
	SetSignal(name string, level bool)
}

// Mapping assigns the transport buttons. Buttons 0 through NoteSourceLast
// always take the source at that index.
type Mapping struct {
	Clear        uint8
	Skip         uint8
	Done         uint8
	TakeSelected uint8
	// Force is held while pressing a source button to cut straight to it.
	Force uint8
	// MaxDuration is the global duration at the top of the main fader.
	MaxDuration time.Duration
}

// DefaultMapping uses the X-Touch transport row.
var DefaultMapping = Mapping{
	Done:         91, // rewind
	Skip:         92, // fast forward
	Clear:        93, // stop
	TakeSelected: 94, // play
	Force:        95, // record
	MaxDuration:  5 * time.Second,
}

type Surface struct {
	ctl     Controls
	op      Operator
	lights  Lights
	mapping Mapping

	mu    sync.Mutex
	force bool
	leds  map[uint8]LEDState
	strip map[uint8]string
	// fader is the last main fader position sent or received, -1 if unknown.
	fader int
}

// New returns a surface. lights may be nil for an input-only device.
func New(ctl Controls, op Operator, lights Lights, mapping Mapping) *Surface {
	return &Surface{
		ctl:     ctl,
		op:      op,
		lights:  lights,
		mapping: mapping,
		leds:    map[uint8]LEDState{},
		strip:   map[uint8]string{},
		fader:   -1,
	}
}

// Handle applies one decoded event.
func (s *Surface) Handle(ev Event) {
	switch e := ev.(type) {
	case ButtonEvent:
		s.button(e)
	case FootSwitchEvent:
		s.op.SetSignal(footSignal(e.Switch), e.Pressed)
	case JogWheelEvent:
		if e.Clockwise {
			s.ctl.SelectDown()
		} else {
			s.ctl.SelectUp()
		}
	case FaderEvent:
		if e.Fader == 8 {
			d := time.Duration(e.Value) * s.mapping.MaxDuration / 127
			s.ctl.SetGlobalDuration(d.Round(10 * time.Millisecond))
			s.mu.Lock()
			s.fader = int(e.Value)
			s.mu.Unlock()
		}
	}
}

func footSignal(n uint8) string {
	if n == 2 {
		return "foot2"
	}
	return "foot1"
}

func (s *Surface) button(e ButtonEvent) {
	m := s.mapping
	if e.Button == m.Force {
		s.mu.Lock()
		s.force = e.Pressed
		s.mu.Unlock()
		s.setLED(m.Force, ledFor(e.Pressed, LEDOn))
		return
	}
	if !e.Pressed {
		return
	}

	s.mu.Lock()
	force := s.force
	s.mu.Unlock()

	var err error
	switch {
	case e.Button <= NoteSourceLast:
		err = s.ctl.Take(switcher.ByIndex(int(e.Button)), force)
	case e.Button == m.TakeSelected:
		err = s.ctl.TakeSelected(force)
	case e.Button == m.Clear:
		s.ctl.ClearPendingQueue()
	case e.Button == m.Skip:
		s.ctl.SkipToLastPending()
	case e.Button == m.Done:
		s.op.Done()
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "button",
			"button":   e.Button,
		}).WithError(err).Warn("Surface take failed")
	}
}

func ledFor(on bool, state LEDState) LEDState {
	if on {
		return state
	}
	return LEDOff
}

// Tally lights the button of the active source and flashes the pending
// one. The first eight scribble strips show source names.
func (s *Surface) Tally(snap switcher.Snapshot, names []string) {
	if s.lights == nil {
		return
	}
	active, pending := -1, -1
	if snap.Active != nil {
		active = snap.Active.Index
	}
	if snap.Session != nil {
		pending = snap.Session.To.Index
	}

	for b := 0; b <= NoteSourceLast; b++ {
		state := LEDOff
		switch b {
		case pending:
			state = LEDFlash
		case active:
			state = LEDOn
		}
		if b >= len(names) {
			state = LEDOff
		}
		s.setLED(uint8(b), state)
	}

	for ch := 0; ch < 8; ch++ {
		color, name := ColorBlack, ""
		if ch < len(names) {
			name = names[ch]
			switch ch {
			case pending:
				color = ColorYellow
			case active:
				color = ColorGreen
			default:
				color = ColorWhite
			}
		}
		s.setStrip(uint8(ch), color, name)
	}

	s.syncFader(s.ctl.GlobalDuration())
}

// syncFader moves the motorized main fader to d unless it is already there,
// which is always the case right after the operator moved it.
func (s *Surface) syncFader(d time.Duration) {
	if s.mapping.MaxDuration <= 0 {
		return
	}
	value := int(min(127, (127*d+s.mapping.MaxDuration/2)/s.mapping.MaxDuration))
	s.mu.Lock()
	prev := s.fader
	s.fader = value
	s.mu.Unlock()
	if prev == value {
		return
	}
	if err := s.lights.SetFader(8, uint8(value)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "syncFader",
		}).WithError(err).Debug("Fader write failed")
	}
}

func (s *Surface) setLED(b uint8, state LEDState) {
	if s.lights == nil {
		return
	}
	s.mu.Lock()
	prev, seen := s.leds[b]
	s.leds[b] = state
	s.mu.Unlock()
	if seen && prev == state {
		return
	}
	if err := s.lights.SetButtonLED(b, state); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "setLED",
			"button":   b,
		}).WithError(err).Debug("LED write failed")
	}
}

func (s *Surface) setStrip(ch uint8, color LCDColor, name string) {
	key := string(rune('0'+color)) + name
	s.mu.Lock()
	prev, seen := s.strip[ch]
	s.strip[ch] = key
	s.mu.Unlock()
	if seen && prev == key {
		return
	}
	if err := s.lights.SetLCD(ch, color, name, lower(name)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "setStrip",
			"channel":  ch,
		}).WithError(err).Debug("LCD write failed")
	}
}

// lower carries the part of a long name that does not fit the top line.
func lower(name string) string {
	if len(name) <= 7 {
		return ""
	}
	return name[7:]
}

// Listen feeds every message from in to the surface until stop is called.
func (s *Surface) Listen(in drivers.In) (stop func(), err error) {
	return midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if ev := Decode(msg); ev != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Listen",
				"event":    ev.String(),
			}).Debug("Surface event")
			s.Handle(ev)
		}
	})
}
