package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/galley/internal/gateway"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/storage"
)

const (
	// DefaultInterval is the poll cadence when none is configured.
	DefaultInterval = 5 * time.Second
	// OfflineThreshold is the number of consecutive failed fetches after
	// which Health reports the gateway offline.
	OfflineThreshold = 2
)

// ErrNoToken is returned by RefreshNow when no device token is stored.
var ErrNoToken = errors.New("no device token")

// Callback receives each non-empty batch of newly delivered orders, newest
// first, with status new.
type Callback func(ctx context.Context, orders []order.Order)

// Health summarises recent sync outcomes.
type Health struct {
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
	Watermark           time.Time
	Polling             bool
}

// IsOffline reports whether enough consecutive fetches have failed to call
// the gateway unreachable.
func (h Health) IsOffline() bool {
	return h.ConsecutiveFailures >= OfflineThreshold
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger. The engine adds component=syncer.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithInterval sets the interval used when Start is given a non-positive one.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// Engine polls the gateway for pending orders, acknowledges them and hands
// them to a callback. Cycles may overlap; mu guards the engine's fields and
// is never held across gateway or storage calls.
type Engine struct {
	gw       gateway.Gateway
	store    storage.Store
	log      *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu        sync.Mutex
	idle      *sync.Cond
	inflight  int
	running   bool
	cancel    context.CancelFunc
	gen       int
	loaded    bool
	watermark time.Time
	health    Health

	// persistMu serialises watermark writes so the stored value never
	// goes backwards.
	persistMu sync.Mutex
}

// New builds an Engine reading the device token and watermark from st.
func New(gw gateway.Gateway, st storage.Store, opts ...Option) *Engine {
	e := &Engine{
		gw:        gw,
		store:     st,
		log:       logging.Discard(),
		now:       time.Now,
		interval:  DefaultInterval,
		watermark: time.Unix(0, 0).UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "syncer")
	e.idle = sync.NewCond(&e.mu)
	return e
}

// Start loads the watermark, runs one cycle in the calling goroutine, then
// schedules a cycle every interval until Stop or ctx is cancelled. Calling
// Start while already running logs a warning and returns nil.
func (e *Engine) Start(ctx context.Context, cb Callback, interval time.Duration) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.log.Warn("sync already running", "event", "already_running")
		return nil
	}
	if interval <= 0 {
		interval = e.interval
	}
	schedCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.gen++
	gen := e.gen
	e.health.Polling = true
	e.mu.Unlock()

	e.log.Info("sync started", "event", "started", "interval", interval.String())
	e.loadWatermark(ctx)

	e.begin()
	_ = e.cycle(ctx, cb)
	e.end()

	go e.schedule(schedCtx, ctx, cb, interval, gen)
	return nil
}

// Stop cancels the schedule. Cycles already running are left to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.resetLocked()
	e.mu.Unlock()
	e.log.Info("sync stopped", "event", "stopped")
}

// RefreshNow runs exactly one cycle in the calling goroutine and reports
// that cycle's outcome. A failed acknowledgement is not an error: the
// orders were delivered.
func (e *Engine) RefreshNow(ctx context.Context, cb Callback) error {
	e.loadWatermark(ctx)
	e.begin()
	defer e.end()
	return e.cycle(ctx, cb)
}

// Wait blocks until no cycle is running.
func (e *Engine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
}

// Watermark returns the created_at lower bound for the next fetch.
func (e *Engine) Watermark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

// Health returns a snapshot of recent sync outcomes.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.health
	h.Watermark = e.watermark
	return h
}

// schedule owns the ticker. Each tick's cycle runs on cycleCtx in its own
// goroutine so a hung cycle never delays the next tick.
func (e *Engine) schedule(ctx, cycleCtx context.Context, cb Callback, interval time.Duration, gen int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			if e.running && e.gen == gen {
				e.resetLocked()
			}
			e.mu.Unlock()
			return
		case <-ticker.C:
			e.begin()
			go func() {
				defer e.end()
				_ = e.cycle(cycleCtx, cb)
			}()
		}
	}
}

func (e *Engine) resetLocked() {
	e.running = false
	e.cancel = nil
	e.health.Polling = false
}

func (e *Engine) begin() {
	e.mu.Lock()
	e.inflight++
	e.mu.Unlock()
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inflight--
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
	e.mu.Unlock()
}

// loadWatermark reads the persisted watermark once. A missing, unreadable
// or unparsable value leaves the epoch in place.
func (e *Engine) loadWatermark(ctx context.Context) {
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if loaded {
		return
	}

	var stored time.Time
	raw, ok, err := e.store.Get(ctx, storage.KeyLastSyncTime)
	switch {
	case err != nil:
		e.log.Warn("read watermark failed", "event", "watermark_read_failed", "error", err)
	case ok && raw != "":
		stored, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			e.log.Warn("stored watermark unparsable, using epoch", "event", "watermark_invalid", "value", raw, "error", err)
			stored = time.Time{}
		}
	}

	e.mu.Lock()
	if !e.loaded {
		e.loaded = true
		e.raiseLocked(stored)
	}
	wm := e.watermark
	e.mu.Unlock()
	e.log.Debug("watermark loaded", "event", "watermark_loaded", "watermark", wm.Format(time.RFC3339Nano))
}

// raiseLocked moves the watermark to t when t is later and reports the
// resulting value.
func (e *Engine) raiseLocked(t time.Time) time.Time {
	if t.After(e.watermark) {
		e.watermark = t
	}
	return e.watermark
}

func (e *Engine) cycle(ctx context.Context, cb Callback) error {
	token, ok, err := e.store.Get(ctx, storage.KeyDeviceToken)
	if err != nil {
		e.log.Warn("read device token failed", "event", "token_read_failed", "error", err)
		return fmt.Errorf("read device token: %w", err)
	}
	if !ok || token == "" {
		e.log.Info("no device token, skipping sync", "event", "no_token")
		return ErrNoToken
	}

	e.mu.Lock()
	since := e.watermark
	e.health.LastAttempt = e.now()
	e.mu.Unlock()

	rows, err := e.gw.FetchPending(ctx, token, since)
	if err != nil {
		e.mu.Lock()
		e.health.LastError = err
		e.health.ConsecutiveFailures++
		failures := e.health.ConsecutiveFailures
		e.mu.Unlock()
		e.log.Warn("fetch pending orders failed", "event", "fetch_failed", "since", since.Format(time.RFC3339Nano), "failures", failures, "error", err)
		return err
	}

	now := e.now()
	e.mu.Lock()
	e.health.LastSuccess = now
	e.health.LastError = nil
	e.health.ConsecutiveFailures = 0
	if len(rows) == 0 {
		e.mu.Unlock()
		e.log.Debug("no pending orders", "event", "empty")
		return nil
	}
	e.raiseLocked(now)
	e.mu.Unlock()

	e.persistWatermark(ctx)

	ids := gateway.IDs(rows)
	if err := e.gw.MarkDelivered(ctx, ids); err != nil {
		e.log.Warn("mark delivered failed", "event", "ack_failed", "ids", ids, "error", err)
	}

	orders := gateway.ToOrders(rows)
	e.log.Info("fetched pending orders", "event", "fetched", "count", len(orders))
	if cb != nil {
		cb(ctx, orders)
	}
	return nil
}

// persistWatermark writes the current in-memory watermark. Writes are
// serialised and always store the latest value, so two racing cycles
// cannot leave an older value behind.
func (e *Engine) persistWatermark(ctx context.Context) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	wm := e.Watermark()
	if err := e.store.Set(ctx, storage.KeyLastSyncTime, wm.UTC().Format(time.RFC3339Nano)); err != nil {
		e.log.Warn("persist watermark failed", "event", "watermark_persist_failed", "watermark", wm.Format(time.RFC3339Nano), "error", err)
	}
}
