// Command surfacetest prints decoded surface events and lights the button
// pressed last, to check a controller before a show.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"sourcerer/lib/surface"
)

func main() {
	defer midi.CloseDriver()

	name := "x-touch"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	inPort, err := surface.FindInPort(name)
	if err != nil {
		fmt.Println("Available MIDI input ports:")
		for _, p := range midi.GetInPorts() {
			fmt.Printf("  %s\n", p)
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}

	var out *surface.Output
	if outPort, err := surface.FindOutPort(name); err == nil {
		out, _ = surface.NewOutput(outPort, surface.DeviceIDXTouch)
	}
	if out != nil {
		for ch := uint8(0); ch < 8; ch++ {
			out.SetLCD(ch, surface.ColorWhite, fmt.Sprintf("Src %d", ch+1), "")
		}
	}

	fmt.Printf("Listening on: %s\n", inPort)

	lit := -1
	stop, err := midi.ListenTo(inPort, func(msg midi.Message, _ int32) {
		event := surface.Decode(msg)
		if event == nil {
			return
		}
		fmt.Println(event)

		b, ok := event.(surface.ButtonEvent)
		if !ok || !b.Pressed || out == nil || b.Button > surface.NoteSourceLast {
			return
		}
		if lit >= 0 {
			out.SetButtonLED(uint8(lit), surface.LEDOff)
		}
		out.SetButtonLED(b.Button, surface.LEDOn)
		lit = int(b.Button)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println()
}
