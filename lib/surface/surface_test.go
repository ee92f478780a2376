package surface

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"sourcerer/lib/source"
	"sourcerer/lib/switcher"
)

type fakeOperator struct {
	done    int
	signals map[string]bool
}

func (f *fakeOperator) Done() { f.done++ }

func (f *fakeOperator) SetSignal(name string, level bool) {
	f.signals[name] = level
}

type fakeLights struct {
	leds   map[uint8]LEDState
	strips map[uint8]string
	faders []uint8
	writes int
}

func (f *fakeLights) SetFader(fader uint8, value uint8) error {
	f.faders = append(f.faders, value)
	f.writes++
	return nil
}

func (f *fakeLights) SetButtonLED(b uint8, state LEDState) error {
	f.leds[b] = state
	f.writes++
	return nil
}

func (f *fakeLights) SetLCD(lcd uint8, color LCDColor, upper, lower string) error {
	f.strips[lcd] = fmt.Sprintf("%d:%s|%s", color, upper, lower)
	f.writes++
	return nil
}

func timed(name string, seconds float64) *source.Source {
	s := source.Default()
	s.Name = name
	s.Transition.UseGlobalDuration = false
	s.Transition.Duration = seconds
	return s
}

func setupTest(t *testing.T) (*Surface, *switcher.Controller, *fakeOperator, *fakeLights) {
	t.Helper()
	list, err := source.NewList(timed("A", 1), timed("B", 1), timed("long name", 0))
	require.NoError(t, err)
	ctl := switcher.New(list, switcher.Options{QueueEnabled: true, GlobalDuration: time.Second})
	op := &fakeOperator{signals: map[string]bool{}}
	lights := &fakeLights{leds: map[uint8]LEDState{}, strips: map[uint8]string{}}
	return New(ctl, op, lights, DefaultMapping), ctl, op, lights
}

func TestDecode(t *testing.T) {
	assert.Equal(t, ButtonEvent{Button: 5, Pressed: true}, Decode(midi.NoteOn(0, 5, 127)))
	assert.Equal(t, ButtonEvent{Button: 5}, Decode(midi.NoteOff(0, 5)))
	assert.Equal(t, FootSwitchEvent{Switch: 2, Pressed: true}, Decode(midi.ControlChange(0, CCFootSwitch2, 127)))
	assert.Equal(t, FaderEvent{Fader: 8, Value: 64}, Decode(midi.ControlChange(0, CCFaderMain, 64)))
	assert.Equal(t, JogWheelEvent{Clockwise: true}, Decode(midi.ControlChange(0, CCJogWheel, 65)))
	assert.Nil(t, Decode(midi.NoteOn(0, 110, 127)))
	assert.Nil(t, Decode(midi.ControlChange(0, 1, 1)))
}

func TestSourceButtonTakes(t *testing.T) {
	s, ctl, _, _ := setupTest(t)

	s.Handle(ButtonEvent{Button: 1, Pressed: true})
	pending, ok := ctl.Pending()
	require.True(t, ok)
	assert.Equal(t, "B", pending.Name)

	s.Handle(ButtonEvent{Button: 0, Pressed: true})
	assert.Equal(t, []switcher.Ref{{Index: 0, Name: "A"}}, ctl.Queue())

	s.Handle(ButtonEvent{Button: 1, Pressed: false})
	s.Handle(ButtonEvent{Button: 30, Pressed: true})
	assert.Len(t, ctl.Queue(), 1, "missing source leaves the queue alone")
}

func TestForceModifier(t *testing.T) {
	s, ctl, _, lights := setupTest(t)
	s.Handle(ButtonEvent{Button: 0, Pressed: true})
	require.True(t, ctl.IsTransitioning())

	s.Handle(ButtonEvent{Button: DefaultMapping.Force, Pressed: true})
	assert.Equal(t, LEDOn, lights.leds[DefaultMapping.Force])
	s.Handle(ButtonEvent{Button: 2, Pressed: true})
	s.Handle(ButtonEvent{Button: DefaultMapping.Force, Pressed: false})
	assert.Equal(t, LEDOff, lights.leds[DefaultMapping.Force])

	active, ok := ctl.Active()
	require.True(t, ok)
	assert.Equal(t, "long name", active.Name)
	assert.False(t, ctl.IsTransitioning())
}

func TestTransportButtons(t *testing.T) {
	s, ctl, op, _ := setupTest(t)
	s.Handle(ButtonEvent{Button: 0, Pressed: true})
	s.Handle(ButtonEvent{Button: 1, Pressed: true})
	require.Len(t, ctl.Queue(), 1)

	s.Handle(ButtonEvent{Button: DefaultMapping.Clear, Pressed: true})
	assert.Empty(t, ctl.Queue())

	s.Handle(ButtonEvent{Button: DefaultMapping.Done, Pressed: true})
	assert.Equal(t, 1, op.done)

	s.Handle(JogWheelEvent{Clockwise: true})
	s.Handle(ButtonEvent{Button: DefaultMapping.TakeSelected, Pressed: true})
	assert.Equal(t, []switcher.Ref{{Index: 1, Name: "B"}}, ctl.Queue())

	s.Handle(JogWheelEvent{})
	assert.Equal(t, 0, ctl.Selected())
}

func TestFootSwitchesAndFader(t *testing.T) {
	s, ctl, op, _ := setupTest(t)
	s.Handle(FootSwitchEvent{Switch: 1, Pressed: true})
	s.Handle(FootSwitchEvent{Switch: 2, Pressed: false})
	assert.Equal(t, map[string]bool{"foot1": true, "foot2": false}, op.signals)

	s.Handle(FaderEvent{Fader: 8, Value: 127})
	assert.Equal(t, 5*time.Second, ctl.GlobalDuration())
	s.Handle(FaderEvent{Fader: 3, Value: 0})
	assert.Equal(t, 5*time.Second, ctl.GlobalDuration())
}

func TestTally(t *testing.T) {
	s, ctl, _, lights := setupTest(t)
	names := ctl.List().Names()

	require.NoError(t, ctl.Take(switcher.ByIndex(2), false))
	require.NoError(t, ctl.Take(switcher.ByIndex(0), false))
	s.Tally(ctl.Snapshot(), names)

	assert.Equal(t, LEDOn, lights.leds[2])
	assert.Equal(t, LEDFlash, lights.leds[0])
	assert.Equal(t, LEDOff, lights.leds[1])
	assert.Equal(t, LEDOff, lights.leds[31])
	assert.Equal(t, "3:A|", lights.strips[0])
	assert.Equal(t, "7:B|", lights.strips[1])
	assert.Equal(t, "2:long name|me", lights.strips[2])
	assert.Equal(t, "0:|", lights.strips[3])

	writes := lights.writes
	s.Tally(ctl.Snapshot(), names)
	assert.Equal(t, writes, lights.writes, "unchanged tally is not resent")
}

func TestMainFaderFollowsGlobalDuration(t *testing.T) {
	s, ctl, _, lights := setupTest(t)
	names := ctl.List().Names()

	s.Tally(ctl.Snapshot(), names)
	assert.Equal(t, []uint8{25}, lights.faders, "1s of 5s")

	ctl.SetGlobalDuration(5 * time.Second)
	s.Tally(ctl.Snapshot(), names)
	assert.Equal(t, []uint8{25, 127}, lights.faders)

	s.Handle(FaderEvent{Fader: 8, Value: 64})
	assert.Equal(t, 2520*time.Millisecond, ctl.GlobalDuration())
	s.Tally(ctl.Snapshot(), names)
	assert.Equal(t, []uint8{25, 127}, lights.faders, "operator move is not echoed back")
}
