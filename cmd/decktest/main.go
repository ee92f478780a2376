// Command decktest lays generated sources out on a connected Stream Deck
// and runs takes locally, to check paging and tally without the daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sourcerer/lib/source"
	"sourcerer/lib/streamdeck"
	"sourcerer/lib/switcher"
)

func main() {
	count := 40
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "Error: source count must be a positive number\n")
			os.Exit(1)
		}
		count = n
	}

	dev, err := streamdeck.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	fmt.Printf("Connected to: %s %s (serial: %s)\n", dev.Product(), dev.Model().Name, dev.SerialNumber())
	dev.SetBrightness(80)

	list, err := source.NewList(source.GenerateMock(count, uint64(time.Now().UnixNano()))...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctl := switcher.New(list, switcher.Options{GlobalDuration: time.Second, QueueEnabled: true})
	panel := streamdeck.NewPanel(dev, ctl)
	ctl.Subscribe(func(ev switcher.Event) {
		fmt.Printf("%s %s\n", ev.Kind, ev.Target.Ref)
		panel.Update(ctl.Snapshot(), list.Names())
	})
	panel.Update(ctl.Snapshot(), list.Names())

	input := make(chan streamdeck.InputEvent, 64)
	go func() {
		if err := dev.ReadInput(input); err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	start := time.Now()
	ticker := time.NewTicker(time.Second / 30)
	defer ticker.Stop()

	for {
		select {
		case ev := <-input:
			if ev.Key != nil && ev.Key.Pressed {
				panel.Press(ev.Key.Key)
				fmt.Printf("Key %d (page %d)\n", ev.Key.Key, panel.Page()+1)
			}
		case t := <-ticker.C:
			ctl.Tick(t.Sub(start))
		case <-sig:
			fmt.Println()
			return
		}
	}
}
