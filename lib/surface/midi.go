// Package surface drives the switcher from a Behringer X-Touch style MIDI
// controller: channel buttons take sources, transport buttons run the queue,
// foot switches raise trigger signals and button LEDs show tally.
package surface

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DeviceIDXTouch   = 0x14
	DeviceIDExtender = 0x15
)

const (
	CCFootSwitch1 = 64
	CCFootSwitch2 = 67
	CCFaderFirst  = 70
	CCFaderLast   = 77
	CCFaderMain   = 78
	CCJogWheel    = 88
)

const (
	NoteButtonFirst = 0
	NoteButtonLast  = 103

	// NoteSourceLast is the last channel button that takes a source by
	// index: the rec, solo, mute and select rows of eight channels.
	NoteSourceLast = 31
)

type Event interface {
	String() string
}

type ButtonEvent struct {
	Button  uint8
	Pressed bool
}

func (e ButtonEvent) String() string {
	return fmt.Sprintf("Button %d %s", e.Button, pressed(e.Pressed))
}

type FaderEvent struct {
	Fader uint8
	Value uint8
}

func (e FaderEvent) String() string {
	if e.Fader == 8 {
		return fmt.Sprintf("Fader main = %d", e.Value)
	}
	return fmt.Sprintf("Fader %d = %d", e.Fader, e.Value)
}

type JogWheelEvent struct {
	Clockwise bool
}

func (e JogWheelEvent) String() string {
	if e.Clockwise {
		return "Jog wheel CW"
	}
	return "Jog wheel CCW"
}

type FootSwitchEvent struct {
	Switch  uint8
	Pressed bool
}

func (e FootSwitchEvent) String() string {
	return fmt.Sprintf("Foot switch %d %s", e.Switch, pressed(e.Pressed))
}

func pressed(p bool) string {
	if p {
		return "pressed"
	}
	return "released"
}

// Decode maps a MIDI message to a surface event, or nil for messages the
// switcher has no use for.
func Decode(msg midi.Message) Event {
	var channel, key, value uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &value):
		return decodeNote(key, value)
	case msg.GetNoteOff(&channel, &key, &value):
		return decodeNote(key, 0)
	case msg.GetControlChange(&channel, &key, &value):
		return decodeCC(key, value)
	}
	return nil
}

func decodeNote(key, velocity uint8) Event {
	if key >= NoteButtonFirst && key <= NoteButtonLast {
		return ButtonEvent{Button: key, Pressed: velocity > 0}
	}
	return nil
}

func decodeCC(controller, value uint8) Event {
	switch {
	case controller >= CCFaderFirst && controller <= CCFaderLast:
		return FaderEvent{Fader: controller - CCFaderFirst, Value: value}
	case controller == CCFaderMain:
		return FaderEvent{Fader: 8, Value: value}
	case controller == CCJogWheel:
		return JogWheelEvent{Clockwise: value == 65}
	case controller == CCFootSwitch1:
		return FootSwitchEvent{Switch: 1, Pressed: value > 0}
	case controller == CCFootSwitch2:
		return FootSwitchEvent{Switch: 2, Pressed: value > 0}
	}
	return nil
}

func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("surface: no MIDI input port matching %q", substr)
}

func FindOutPort(substr string) (drivers.Out, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("surface: no MIDI output port matching %q", substr)
}
