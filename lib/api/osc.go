package api

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"sourcerer/lib/engine"
	"sourcerer/lib/osc"
	"sourcerer/lib/switcher"
)

// RegisterOSC adds the control addresses to router. Every request replies
// with the engine state.
func RegisterOSC(router *osc.Router, e *engine.Engine) {
	ctl := e.Controller()
	state := func() (any, error) { return e.State(), nil }

	take := func(force bool) osc.HandlerFunc {
		return func(_ string, args []any) (any, error) {
			id, err := osc.Ident(args, 0)
			if err != nil {
				return nil, err
			}
			if err := ctl.Take(switcher.Identifier(id), force); err != nil {
				return nil, err
			}
			return state()
		}
	}
	router.Handle("/take", take(false))
	router.Handle("/take/force", take(true))

	router.Handle("/take/selected", func(_ string, args []any) (any, error) {
		force, err := osc.Bool(args, 0, false)
		if err != nil {
			return nil, err
		}
		if err := ctl.TakeSelected(force); err != nil {
			return nil, err
		}
		return state()
	})

	router.Handle("/select", func(_ string, args []any) (any, error) {
		index, err := osc.Int(args, 0)
		if err != nil {
			return nil, err
		}
		if err := ctl.Select(index); err != nil {
			return nil, err
		}
		return state()
	})
	router.Handle("/select/up", func(string, []any) (any, error) {
		ctl.SelectUp()
		return state()
	})
	router.Handle("/select/down", func(string, []any) (any, error) {
		ctl.SelectDown()
		return state()
	})

	router.Handle("/queue/clear", func(string, []any) (any, error) {
		ctl.ClearPendingQueue()
		return state()
	})
	router.Handle("/queue/skip", func(string, []any) (any, error) {
		ctl.SkipToLastPending()
		return state()
	})
	router.Handle("/queue/enable", func(_ string, args []any) (any, error) {
		on, err := osc.Bool(args, 0, true)
		if err != nil {
			return nil, err
		}
		ctl.SetQueueEnabled(on)
		return state()
	})

	router.Handle("/done", func(string, []any) (any, error) {
		e.Done()
		return state()
	})
	router.HandlePrefix("/trigger/", func(name string, args []any) (any, error) {
		level, err := osc.Bool(args, 0, true)
		if err != nil {
			return nil, err
		}
		e.SetSignal(name, level)
		return state()
	})

	router.Handle("/state", func(string, []any) (any, error) { return state() })
	router.Handle("/report", func(string, []any) (any, error) {
		rep, ok := e.Scheduler().Report()
		if !ok {
			return nil, nil
		}
		return rep, nil
	})
}

// BroadcastState pushes /update/state to OSC clients after every take,
// completion and queue change.
func BroadcastState(srv *osc.Server, e *engine.Engine) {
	e.Controller().Subscribe(func(ev switcher.Event) {
		buf, err := json.Marshal(e.State())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "BroadcastState",
			}).WithError(err).Error("State encode failed")
			return
		}
		srv.Broadcast("/update/state", ev.Kind.String(), string(buf))
	})
}
