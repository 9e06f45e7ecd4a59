package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/galley/internal/config"
	"github.com/five82/galley/internal/device"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/prefs"
	"github.com/five82/galley/internal/state"
	"github.com/five82/galley/internal/storage"
	"github.com/five82/galley/internal/syncer"
	"github.com/five82/galley/internal/ui"
)

// Options configure the galley application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/galley/prefs.toml
	PollEvery  int    // seconds; zero uses the configured interval
	StartAdmin bool
}

// Run boots galley and blocks until the UI exits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.Sync.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logFile, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	store, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	identity, err := device.Ensure(ctx, store)
	if err != nil {
		return fmt.Errorf("init device identity: %w", err)
	}

	board := state.NewBoard(store, logger)
	if err := board.Load(ctx); err != nil {
		return fmt.Errorf("load board: %w", err)
	}

	gw, closeGateway, err := newGateway(ctx, cfg.Gateway, logger)
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}
	defer closeGateway()

	engine := syncer.New(gw, store,
		syncer.WithLogger(logger),
		syncer.WithInterval(cfg.Sync.PollInterval),
	)

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("prefs unreadable, using defaults", "event", "prefs_failed", "error", err)
	}

	logger.Info("galley starting",
		"event", "startup",
		"driver", cfg.Gateway.Driver,
		"poll_interval", cfg.Sync.PollInterval.String(),
		"orders", board.Snapshot().Count(),
	)

	return runLoop(ctx, runDeps{
		engine: engine,
		onNew:  mergeInto(board, logger),
		log:    logger,
		ui: func(ctx context.Context, onNew syncer.Callback) error {
			return ui.Run(ui.Options{
				Context:     ctx,
				Board:       board,
				Syncer:      engine,
				OnNewOrders: onNew,
				Store:       store,
				Identity:    identity,
				WebhookURL:  cfg.Webhook.URL,
				LogPath:     cfg.Log.Path,
				Prefs:       userPrefs,
				PrefsPath:   opts.PrefsPath,
				StartAdmin:  opts.StartAdmin,
			})
		},
	})
}

// engine is the part of syncer.Engine runLoop drives.
type engine interface {
	Start(ctx context.Context, cb syncer.Callback, interval time.Duration) error
	Stop()
	Wait()
}

type runDeps struct {
	engine engine
	onNew  syncer.Callback
	ui     func(ctx context.Context, onNew syncer.Callback) error
	log    *slog.Logger
}

// runLoop runs the engine and the UI side by side. Whichever finishes first
// cancels the other; the engine is always stopped and drained before return.
func runLoop(ctx context.Context, d runDeps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.engine.Start(gctx, d.onNew, 0); err != nil {
			return fmt.Errorf("start sync: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return d.ui(gctx, d.onNew)
	})

	err := g.Wait()
	d.engine.Stop()
	d.engine.Wait()
	if err != nil {
		d.log.Error("galley stopped", "event", "shutdown", "error", err)
		return err
	}
	d.log.Info("galley stopped", "event", "shutdown")
	return nil
}

// mergeInto returns the sync callback that folds delivered orders into board.
func mergeInto(board *state.Board, logger *slog.Logger) syncer.Callback {
	return func(ctx context.Context, orders []order.Order) {
		added, err := board.Merge(ctx, orders)
		if err != nil {
			logger.Warn("board merge failed", "event", "merge_failed", "count", len(orders), "error", err)
			return
		}
		if added > 0 {
			logger.Debug("orders delivered", "event", "delivered", "added", added)
		}
	}
}
