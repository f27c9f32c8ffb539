// Package orchestrator wires C1-C7 together and runs the three
// cooperating loops (C4's reaper ticker, C5's event-triggered-plus-
// ticker dispatch, C6's subscription receive loop) under one
// cancellable errgroup. Grounded in the teacher's go.mod choice of
// golang.org/x/sync, upgraded from the teacher's raw
// sync.WaitGroup/channel style in internal/queue/queue.go to errgroup
// because the runtime needs first-error propagation without losing
// independent-loop liveness (spec §5 / SPEC_FULL §5).
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"whisperqueue/internal/batch"
	"whisperqueue/internal/config"
	"whisperqueue/internal/controller"
	"whisperqueue/internal/eventbus"
	"whisperqueue/internal/handler"
	"whisperqueue/internal/notify"
	"whisperqueue/internal/reaper"
	"whisperqueue/internal/store"
)

// Runtime holds the constructed C4/C5/C6 loops plus the event bus they
// share.
type Runtime struct {
	reaper     *reaper.Reaper
	controller *controller.Controller
	handler    *handler.Handler
	bus        eventbus.Bus
	cfg        *config.Config
	log        *slog.Logger
}

// New builds the three loops from already-constructed adapters. cfg
// satisfies reaper.Config, controller.Config, and handler.NotifyConfig
// simultaneously, matching SPEC_FULL's single Config struct.
func New(cfg *config.Config, log *slog.Logger, s store.Store, exec batch.Executor, bus eventbus.Bus, notifier notify.Notifier) *Runtime {
	ctrl := controller.New(s, exec, cfg, log)
	return &Runtime{
		reaper:     reaper.New(s, cfg, log),
		controller: ctrl,
		handler:    handler.New(s, ctrl, notifier, cfg, log),
		bus:        bus,
		cfg:        cfg,
		log:        log,
	}
}

// Controller exposes the dispatch loop for one-shot callers (the
// `reconcile` subcommand runs a single Dispatch without starting the
// full event loop).
func (r *Runtime) Controller() *controller.Controller { return r.controller }

// Reaper exposes the sweep for the `reconcile` subcommand.
func (r *Runtime) Reaper() *reaper.Reaper { return r.reaper }

// Run starts the reaper ticker, the controller's backstop ticker, and
// the event bus subscription, all under one errgroup. Each loop
// recovers its own panics and logs rather than letting errgroup cancel
// its siblings over a single tick's failure (spec §7 "no exception
// propagates out of a loop iteration").
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.runTicker(ctx, "reaper", func(ctx context.Context) { r.reaper.Tick(ctx) })
		return nil
	})

	g.Go(func() error {
		r.runTicker(ctx, "controller", func(ctx context.Context) { r.controller.TriggerDispatch(ctx) })
		return nil
	})

	g.Go(func() error {
		err := r.bus.Subscribe(ctx, func(ctx context.Context, payload []byte) error {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("loop panic recovered", "loop", "handler", "panic", rec)
				}
			}()
			return r.handler.Handle(ctx, payload)
		})
		if err != nil && ctx.Err() == nil {
			r.log.Error("event bus subscription ended", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func (r *Runtime) runTicker(ctx context.Context, name string, fn func(context.Context)) {
	interval := time.Duration(r.cfg.PollIntervalSeconds()) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeTick(name, fn, ctx)
			if next := time.Duration(r.cfg.PollIntervalSeconds()) * time.Second; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (r *Runtime) safeTick(name string, fn func(context.Context), ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("loop panic recovered", "loop", name, "panic", rec)
		}
	}()
	fn(ctx)
}
