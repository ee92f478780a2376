package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"sourcerer/lib/api"
	"sourcerer/lib/config"
	"sourcerer/lib/engine"
	"sourcerer/lib/osc"
	"sourcerer/lib/source"
	"sourcerer/lib/streamdeck"
	"sourcerer/lib/surface"
	"sourcerer/lib/switcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(cfg.Level())

	if err := run(cfg); err != nil {
		logrus.WithError(err).Fatal("sourcerer stopped")
	}
}

func run(cfg *config.Config) error {
	list, err := loadSources(cfg)
	if err != nil {
		return err
	}
	blur, _ := cfg.Blur()

	e := engine.New(list, engine.Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		FrameRate:      cfg.FrameRate,
		Workers:        cfg.Workers,
		GlobalDuration: cfg.TransitionDuration,
		QueueEnabled:   cfg.QueueEnabled,
		WrapNext:       cfg.WrapNext,
		Blur:           blur,
		MediaDir:       cfg.MediaDir,
	})
	defer e.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MockSources <= 0 && cfg.WatchSources {
		err := list.Watch(ctx, cfg.SourcesPath, func(err error) {
			if err == nil {
				e.Media().Forget()
			}
		})
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(ctx) })
	logrus.WithFields(logrus.Fields{
		"function": "run",
		"width":    cfg.Width,
		"height":   cfg.Height,
		"interval": cfg.FrameInterval(),
	}).Info("Engine running")

	if cfg.OSCAddr != "" {
		router := osc.NewRouter()
		api.RegisterOSC(router, e)
		srv, err := osc.Listen(cfg.OSCAddr, router)
		if err != nil {
			return fmt.Errorf("osc: %w", err)
		}
		api.BroadcastState(srv, e)
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"addr":     srv.Addr().String(),
		}).Info("OSC listening")
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if cfg.HTTPAddr != "" {
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router(e)}
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"addr":     cfg.HTTPAddr,
		}).Info("HTTP listening")
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	if cfg.MIDIPort != "" {
		closeMIDI, err := openSurface(cfg.MIDIPort, e)
		if err != nil {
			return err
		}
		defer closeMIDI()
	}

	if cfg.StreamDeck {
		if err := openStreamDeck(ctx, g, e); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
			}).WithError(err).Warn("Stream Deck unavailable")
		}
	}

	return g.Wait()
}

func loadSources(cfg *config.Config) (*source.List, error) {
	if cfg.MockSources > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "loadSources",
			"count":    cfg.MockSources,
			"seed":     cfg.MockSeed,
		}).Info("Using generated sources")
		return source.NewList(source.GenerateMock(cfg.MockSources, cfg.MockSeed)...)
	}
	list, err := source.Load(cfg.SourcesPath)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "loadSources",
		"path":     cfg.SourcesPath,
		"count":    list.Count(),
	}).Info("Sources loaded")
	return list, nil
}

func openSurface(port string, e *engine.Engine) (func(), error) {
	in, err := surface.FindInPort(port)
	if err != nil {
		return nil, err
	}
	var lights surface.Lights
	if out, err := surface.FindOutPort(port); err == nil {
		if o, err := surface.NewOutput(out, surface.DeviceIDXTouch); err == nil {
			lights = o
		}
	}

	ctl := e.Controller()
	surf := surface.New(ctl, e, lights, surface.DefaultMapping)
	ctl.Subscribe(func(switcher.Event) {
		surf.Tally(ctl.Snapshot(), e.List().Names())
	})
	surf.Tally(ctl.Snapshot(), e.List().Names())

	stopListen, err := surf.Listen(in)
	if err != nil {
		return nil, fmt.Errorf("surface: listen: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "openSurface",
		"port":     in.String(),
	}).Info("MIDI surface connected")
	return func() {
		stopListen()
		midi.CloseDriver()
	}, nil
}

func openStreamDeck(ctx context.Context, g *errgroup.Group, e *engine.Engine) error {
	dev, err := streamdeck.Open()
	if err != nil {
		return err
	}
	dev.SetBrightness(80)

	ctl := e.Controller()
	panel := streamdeck.NewPanel(dev, ctl)
	ctl.Subscribe(func(switcher.Event) {
		panel.Update(ctl.Snapshot(), e.List().Names())
	})
	panel.Update(ctl.Snapshot(), e.List().Names())

	logrus.WithFields(logrus.Fields{
		"function": "openStreamDeck",
		"model":    dev.Model().Name,
		"serial":   dev.SerialNumber(),
	}).Info("Stream Deck connected")

	input := make(chan streamdeck.InputEvent, 64)
	go func() {
		if err := dev.ReadInput(input); err != nil && ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{
				"function": "openStreamDeck",
			}).WithError(err).Warn("Stream Deck read failed")
		}
	}()
	g.Go(func() error {
		defer dev.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-input:
				if ev.Key != nil && ev.Key.Pressed {
					panel.Press(ev.Key.Key)
				}
			}
		}
	})
	return nil
}
