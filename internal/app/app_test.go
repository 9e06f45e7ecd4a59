package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/galley/internal/config"
	"github.com/five82/galley/internal/gateway"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/state"
	"github.com/five82/galley/internal/storage"
	"github.com/five82/galley/internal/syncer"
)

type fakeEngine struct {
	mu       sync.Mutex
	startErr error
	started  chan struct{}
	startCtx context.Context
	stopped  bool
	waited   bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{started: make(chan struct{})}
}

func (f *fakeEngine) Start(ctx context.Context, _ syncer.Callback, _ time.Duration) error {
	f.mu.Lock()
	f.startCtx = ctx
	f.mu.Unlock()
	close(f.started)
	return f.startErr
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeEngine) Wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		panic("Wait before Stop")
	}
	f.waited = true
}

func TestRunLoop_UIQuitStopsEngine(t *testing.T) {
	eng := newFakeEngine()
	rec := logging.NewRecorder()

	err := runLoop(context.Background(), runDeps{
		engine: eng,
		log:    rec.Logger(),
		ui: func(context.Context, syncer.Callback) error {
			<-eng.started
			return nil
		},
	})
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if !eng.stopped || !eng.waited {
		t.Fatalf("engine stopped=%v waited=%v, want both", eng.stopped, eng.waited)
	}
	if eng.startCtx.Err() == nil {
		t.Fatal("engine context still live after the UI quit")
	}
	if len(rec.Find("shutdown")) != 1 {
		t.Fatalf("shutdown events = %d, want 1", len(rec.Find("shutdown")))
	}
}

func TestRunLoop_StartErrorEndsUI(t *testing.T) {
	eng := newFakeEngine()
	eng.startErr = errors.New("boom")

	err := runLoop(context.Background(), runDeps{
		engine: eng,
		log:    logging.Discard(),
		ui: func(ctx context.Context, _ syncer.Callback) error {
			<-ctx.Done()
			return nil
		},
	})
	if err == nil || !strings.Contains(err.Error(), "start sync") {
		t.Fatalf("err = %v, want start sync error", err)
	}
	if !eng.stopped {
		t.Fatal("engine not stopped")
	}
}

func TestRunLoop_ParentCancelEndsUI(t *testing.T) {
	eng := newFakeEngine()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runLoop(ctx, runDeps{
			engine: eng,
			log:    logging.Discard(),
			ui: func(ctx context.Context, _ syncer.Callback) error {
				<-ctx.Done()
				return nil
			},
		})
	}()

	<-eng.started
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runLoop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after cancel")
	}
}

func TestMergeInto_AddsOnlyUnknownOrders(t *testing.T) {
	board := state.NewBoard(storage.NewMemory(nil), nil)
	rec := logging.NewRecorder()
	cb := mergeInto(board, rec.Logger())
	ctx := context.Background()

	cb(ctx, []order.Order{{ID: "A", Status: order.StatusNew}})
	if err := board.Advance(ctx, "A", order.StatusPreparing); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	cb(ctx, []order.Order{{ID: "B", Status: order.StatusNew}, {ID: "A", Status: order.StatusNew}})

	snap := board.Snapshot()
	if snap.Count() != 2 {
		t.Fatalf("count = %d, want 2", snap.Count())
	}
	got, _ := board.Get("A")
	if got.Status != order.StatusPreparing {
		t.Fatalf("A status = %q, want preparing", got.Status)
	}
	if len(rec.Find("delivered")) != 2 {
		t.Fatalf("delivered events = %d, want 2", len(rec.Find("delivered")))
	}
}

type failingStore struct{ storage.Memory }

func (f *failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestMergeInto_LogsPersistFailure(t *testing.T) {
	board := state.NewBoard(&failingStore{}, nil)
	rec := logging.NewRecorder()

	mergeInto(board, rec.Logger())(context.Background(), []order.Order{{ID: "A", Status: order.StatusNew}})

	if len(rec.Find("merge_failed")) != 1 {
		t.Fatalf("merge_failed events = %d, want 1", len(rec.Find("merge_failed")))
	}
	if board.Snapshot().Count() != 1 {
		t.Fatal("merged order dropped from memory after persist failure")
	}
}

func TestNewGateway_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	gw, closeFn, err := newGateway(ctx, config.GatewayConfig{Driver: config.DriverREST, URL: "https://x.supabase.co"}, nil)
	if err != nil {
		t.Fatalf("rest: %v", err)
	}
	defer closeFn()
	if _, ok := gw.(*gateway.Client); !ok {
		t.Fatalf("rest driver built %T", gw)
	}

	if _, _, err := newGateway(ctx, config.GatewayConfig{Driver: config.DriverREST}, nil); err == nil {
		t.Fatal("rest driver without url succeeded")
	}
	if _, _, err := newGateway(ctx, config.GatewayConfig{Driver: config.DriverPostgres}, nil); err == nil {
		t.Fatal("postgres driver without dsn succeeded")
	}
	if _, _, err := newGateway(ctx, config.GatewayConfig{Driver: "kafka"}, nil); err == nil || !strings.Contains(err.Error(), "unknown gateway driver") {
		t.Fatalf("unknown driver err = %v", err)
	}
}
