package surface

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type LCDColor uint8

const (
	ColorBlack  LCDColor = 0
	ColorRed    LCDColor = 1
	ColorGreen  LCDColor = 2
	ColorYellow LCDColor = 3
	ColorWhite  LCDColor = 7
)

type LEDState uint8

const (
	LEDOff   LEDState = 0
	LEDFlash LEDState = 64
	LEDOn    LEDState = 127
)

// Lights is what tally needs from the device.
type Lights interface {
	SetButtonLED(button uint8, state LEDState) error
	SetFader(fader uint8, value uint8) error
	SetLCD(lcd uint8, color LCDColor, upper, lower string) error
}

// Output writes LED, fader and scribble strip updates to the device.
type Output struct {
	send     func(msg midi.Message) error
	DeviceID uint8
}

func NewOutput(port drivers.Out, deviceID uint8) (*Output, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("surface: open output port: %w", err)
	}
	return &Output{send: send, DeviceID: deviceID}, nil
}

func (o *Output) SetButtonLED(button uint8, state LEDState) error {
	return o.send(midi.NoteOn(0, button, uint8(state)))
}

// SetFader moves a motorized fader. Fader 8 is the main fader.
func (o *Output) SetFader(fader uint8, value uint8) error {
	cc := CCFaderFirst + fader
	if fader == 8 {
		cc = CCFaderMain
	}
	return o.send(midi.ControlChange(0, cc, value))
}

// SetLCD writes both lines of one scribble strip.
func (o *Output) SetLCD(lcd uint8, color LCDColor, upper, lower string) error {
	data := []byte{0x00, 0x20, 0x32, o.DeviceID, 0x4C, lcd, uint8(color)}
	data = append(data, padOrTruncate(upper, 7)...)
	data = append(data, padOrTruncate(lower, 7)...)
	return o.send(midi.SysEx(data))
}

func padOrTruncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	for len(s) < n {
		s += " "
	}
	return s
}
