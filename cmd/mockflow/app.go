package main

import (
	"context"
	"fmt"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/explain"
	"github.com/funnyzak/mockflow/internal/live"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/printer"
	"github.com/funnyzak/mockflow/internal/ratelimit"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/i18n"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	translator *i18n.Translator
	store      storage.Store
	tracker    *ratelimit.Tracker
	live       *live.Client
	workspace  *workspace.Service
	runner     *runner.Runner
	printer    printer.Printer
}

// newApp opens storage and the rate-limit backend and wires the runner. When
// serving, calls are printed unless output.silence is set.
func newApp(ctx context.Context, cfg *config.Config, serving bool) (_ *app, err error) {
	a := &app{
		cfg: cfg,
		log: logger.NewLogger(&cfg.Log, cfg.Output.Mode),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.translator, err = i18n.NewTranslator(cfg.Output.Locale)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	a.store, err = storage.New(&cfg.Storage, a.log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	windows, err := ratelimit.OpenStore(ctx, cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("open rate limit backend: %w", err)
	}
	a.tracker = ratelimit.NewTracker(windows)

	a.workspace, err = workspace.Open(ctx, a.store, a.log, cfg.Storage.SeedDefaults)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	a.live = live.NewClient(a.log, live.OptionsFromConfig(cfg.Live))

	a.runner = runner.New(runner.Options{
		Workspace: a.workspace,
		Engine:    simulator.New(a.tracker, simulator.WithLogger(a.log)),
		Live:      a.live,
		Store:     a.store,
		Explainer: explain.New(a.translator, cfg.Output.Locale),
		Logger:    a.log,
	})

	a.printer = printer.New(cfg.Output.Mode, a.log, &cfg.Output, a.translator, cfg.Output.Locale)
	if !serving || !cfg.Output.Silence {
		a.runner.Subscribe(printer.Listener(a.printer))
	}
	return a, nil
}

// Close releases the live client, the rate-limit backend and storage.
func (a *app) Close() {
	if a.live != nil {
		a.live.Close()
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			a.log.Warn("Failed to close rate limit backend", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close storage", "error", err)
		}
	}
}
