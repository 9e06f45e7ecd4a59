package syncer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/five82/galley/internal/gateway"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/state"
	"github.com/five82/galley/internal/storage"
)

var epoch = time.Unix(0, 0).UTC()

type fetchCall struct {
	token string
	since time.Time
}

type fakeGateway struct {
	mu     sync.Mutex
	fetch  func(call int) ([]gateway.Row, error)
	calls  []fetchCall
	ackErr error
	acks   [][]string
}

func (f *fakeGateway) FetchPending(_ context.Context, token string, since time.Time) ([]gateway.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{token: token, since: since})
	call := len(f.calls)
	fetch := f.fetch
	f.mu.Unlock()
	if fetch == nil {
		return nil, nil
	}
	return fetch(call)
}

func (f *fakeGateway) MarkDelivered(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, append([]string(nil), ids...))
	return f.ackErr
}

func (f *fakeGateway) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func (f *fakeGateway) ackCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.acks...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type batches struct {
	mu  sync.Mutex
	got [][]order.Order
}

func (b *batches) callback(_ context.Context, orders []order.Order) {
	b.mu.Lock()
	b.got = append(b.got, orders)
	b.mu.Unlock()
}

func (b *batches) all() [][]order.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]order.Order(nil), b.got...)
}

func rows(ids ...string) []gateway.Row {
	out := make([]gateway.Row, 0, len(ids))
	for i, id := range ids {
		out = append(out, gateway.Row{ID: gateway.RowID(id), OrderNumber: int64(100 + i)})
	}
	return out
}

func tokenStore() *storage.Memory {
	return storage.NewMemory(map[string]string{storage.KeyDeviceToken: "tok"})
}

func TestRefreshNow_SingleRowAdvancesWatermarkAndAcks(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	gw := &fakeGateway{fetch: func(int) ([]gateway.Row, error) { return rows("A"), nil }}
	st := tokenStore()
	rec := logging.NewRecorder()
	var got batches

	e := New(gw, st, WithClock(func() time.Time { return now }), WithLogger(rec.Logger()))
	if err := e.RefreshNow(context.Background(), got.callback); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	calls := gw.fetchCalls()
	if len(calls) != 1 || calls[0].token != "tok" || !calls[0].since.Equal(epoch) {
		t.Fatalf("fetch calls = %#v, want one with tok since epoch", calls)
	}
	if wm := e.Watermark(); !wm.Equal(now) {
		t.Fatalf("Watermark = %v, want %v", wm, now)
	}
	stored, _, _ := st.Get(context.Background(), storage.KeyLastSyncTime)
	if stored != now.Format(time.RFC3339Nano) {
		t.Fatalf("stored watermark = %q, want %q", stored, now.Format(time.RFC3339Nano))
	}
	if acks := gw.ackCalls(); !reflect.DeepEqual(acks, [][]string{{"A"}}) {
		t.Fatalf("acks = %v, want [[A]]", acks)
	}
	delivered := got.all()
	if len(delivered) != 1 || len(delivered[0]) != 1 {
		t.Fatalf("callback batches = %#v, want one batch of one", delivered)
	}
	if o := delivered[0][0]; o.ID != "A" || o.Status != order.StatusNew {
		t.Fatalf("delivered order = %#v, want A with status new", o)
	}
	if len(rec.Find("fetched")) != 1 {
		t.Fatalf("missing fetched event in %#v", rec.Records())
	}
	if rec.Find("fetched")[0].Attrs["component"] != "syncer" {
		t.Fatalf("fetched event missing component=syncer")
	}
}

func TestRefreshNow_AckFailureRedeliversWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{
		fetch:  func(int) ([]gateway.Row, error) { return rows("A"), nil },
		ackErr: errors.New("ack timeout"),
	}
	st := tokenStore()
	rec := logging.NewRecorder()
	board := state.NewBoard(st, nil)
	var calls int
	merge := func(ctx context.Context, orders []order.Order) {
		calls++
		if _, err := board.Merge(ctx, orders); err != nil {
			t.Errorf("Merge: %v", err)
		}
	}

	e := New(gw, st, WithLogger(rec.Logger()))
	if err := e.RefreshNow(ctx, merge); err != nil {
		t.Fatalf("RefreshNow with failed ack = %v, want nil", err)
	}
	e.RefreshNow(ctx, merge)

	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2 (delivery proceeds despite ack failure)", calls)
	}
	if n := board.Snapshot().Count(); n != 1 {
		t.Fatalf("board count = %d, want 1", n)
	}
	failed := rec.Find("ack_failed")
	if len(failed) != 2 {
		t.Fatalf("ack_failed events = %d, want 2", len(failed))
	}
	if failed[0].Attrs["ids"] != "[A]" {
		t.Fatalf("ack_failed ids = %q, want [A]", failed[0].Attrs["ids"])
	}
}

func TestRefreshNow_NoTokenSkipsFetch(t *testing.T) {
	gw := &fakeGateway{}
	rec := logging.NewRecorder()
	e := New(gw, storage.NewMemory(nil), WithLogger(rec.Logger()))

	if err := e.RefreshNow(context.Background(), nil); !errors.Is(err, ErrNoToken) {
		t.Fatalf("RefreshNow = %v, want ErrNoToken", err)
	}

	if n := len(gw.fetchCalls()); n != 0 {
		t.Fatalf("fetch calls = %d, want 0", n)
	}
	if len(rec.Find("no_token")) != 1 {
		t.Fatalf("missing no_token event")
	}
}

func TestRefreshNow_FetchFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	fail := true
	var mu sync.Mutex
	gw := &fakeGateway{fetch: func(int) ([]gateway.Row, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errors.New("connection refused")
		}
		return nil, nil
	}}
	st := tokenStore()
	rec := logging.NewRecorder()
	var got batches
	e := New(gw, st, WithLogger(rec.Logger()))

	if err := e.RefreshNow(ctx, got.callback); err == nil {
		t.Fatal("RefreshNow = nil, want the fetch error")
	}

	if wm := e.Watermark(); !wm.Equal(epoch) {
		t.Fatalf("Watermark = %v, want epoch", wm)
	}
	if _, ok, _ := st.Get(ctx, storage.KeyLastSyncTime); ok {
		t.Fatal("watermark persisted after failed fetch")
	}
	if len(gw.ackCalls()) != 0 || len(got.all()) != 0 {
		t.Fatal("failed fetch acknowledged or delivered rows")
	}
	if len(rec.Find("fetch_failed")) != 1 {
		t.Fatal("missing fetch_failed event")
	}
	h := e.Health()
	if h.ConsecutiveFailures != 1 || h.LastError == nil || h.IsOffline() {
		t.Fatalf("health after one failure = %#v", h)
	}

	e.RefreshNow(ctx, got.callback)
	if !e.Health().IsOffline() {
		t.Fatal("IsOffline = false after two failures")
	}

	mu.Lock()
	fail = false
	mu.Unlock()
	if err := e.RefreshNow(ctx, got.callback); err != nil {
		t.Fatalf("RefreshNow after recovery: %v", err)
	}
	if h := e.Health(); h.ConsecutiveFailures != 0 || h.LastError != nil || h.IsOffline() {
		t.Fatalf("health after recovery = %#v", h)
	}
}

func TestRefreshNow_UndecodableRowDoesNotBlockBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id": "A", "order_number": 1, "items": [{"itemName": "Adobo", "quantity": 1}], "created_at": "2024-05-01T12:00:00Z"},
			{"id": "B", "order_number": 2, "items": [{"itemName": "Pancit", "quantity": "2"}], "created_at": "2024-05-01T11:59:00Z"}
		]`)
	}))
	t.Cleanup(server.Close)

	rec := logging.NewRecorder()
	client, err := gateway.NewClient(gateway.ClientOptions{URL: server.URL, Logger: rec.Logger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	var got batches
	e := New(client, tokenStore(), WithClock(func() time.Time { return now }))

	if err := e.RefreshNow(context.Background(), got.callback); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	delivered := got.all()
	if len(delivered) != 1 || len(delivered[0]) != 1 || delivered[0][0].ID != "A" {
		t.Fatalf("delivered = %#v, want A alone", delivered)
	}
	if h := e.Health(); h.ConsecutiveFailures != 0 || !h.Watermark.Equal(now) {
		t.Fatalf("health = %#v, want success with watermark %v", h, now)
	}
	if len(rec.Find("row_invalid")) != 1 {
		t.Fatal("missing row_invalid event for B")
	}
}

func TestRefreshNow_EmptyResultHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	st := tokenStore()
	gw := &fakeGateway{}
	var got batches
	e := New(gw, st)

	e.RefreshNow(ctx, got.callback)

	if wm := e.Watermark(); !wm.Equal(epoch) {
		t.Fatalf("Watermark = %v, want epoch", wm)
	}
	if _, ok, _ := st.Get(ctx, storage.KeyLastSyncTime); ok {
		t.Fatal("watermark persisted after empty fetch")
	}
	if len(gw.ackCalls()) != 0 || len(got.all()) != 0 {
		t.Fatal("empty fetch acknowledged or delivered rows")
	}
	if e.Health().LastSuccess.IsZero() {
		t.Fatal("empty fetch not recorded as success")
	}
}

func TestStart_LoadsPersistedWatermark(t *testing.T) {
	stored := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Time
		event string
	}{
		{name: "valid", value: stored.Format(time.RFC3339Nano), want: stored},
		{name: "unparsable", value: "yesterday", want: epoch, event: "watermark_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tokenStore()
			_ = st.Set(context.Background(), storage.KeyLastSyncTime, tt.value)
			gw := &fakeGateway{}
			rec := logging.NewRecorder()
			e := New(gw, st, WithLogger(rec.Logger()))

			if err := e.Start(context.Background(), nil, time.Hour); err != nil {
				t.Fatalf("Start: %v", err)
			}
			defer e.Stop()

			calls := gw.fetchCalls()
			if len(calls) != 1 || !calls[0].since.Equal(tt.want) {
				t.Fatalf("fetch calls = %#v, want one since %v", calls, tt.want)
			}
			if tt.event != "" && len(rec.Find(tt.event)) != 1 {
				t.Fatalf("missing %s event", tt.event)
			}
		})
	}
}

func TestStart_IsIdempotentAndRestartable(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	rec := logging.NewRecorder()
	e := New(gw, tokenStore(), WithLogger(rec.Logger()))

	if err := e.Start(ctx, nil, time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx, nil, time.Hour); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := len(gw.fetchCalls()); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
	if len(rec.Find("already_running")) != 1 {
		t.Fatal("missing already_running warning")
	}
	if !e.Health().Polling {
		t.Fatal("Polling = false while started")
	}

	e.Stop()
	e.Stop()
	if e.Health().Polling {
		t.Fatal("Polling = true after Stop")
	}

	if err := e.Start(ctx, nil, time.Hour); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer e.Stop()
	if n := len(gw.fetchCalls()); n != 2 {
		t.Fatalf("fetch calls after restart = %d, want 2", n)
	}
}

func TestStart_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(&fakeGateway{}, tokenStore())
	if err := e.Start(ctx, nil, time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for e.Health().Polling {
		if time.Now().After(deadline) {
			t.Fatal("schedule still running after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStop_LetsInFlightCycleFinish(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{fetch: func(call int) ([]gateway.Row, error) {
		if call != 2 {
			return nil, nil
		}
		close(entered)
		<-release
		return rows("B"), nil
	}}
	var got batches
	e := New(gw, tokenStore())

	if err := e.Start(context.Background(), got.callback, 10*time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker cycle never started")
	}
	e.Stop()
	close(release)
	e.Wait()

	delivered := got.all()
	if len(delivered) != 1 || delivered[0][0].ID != "B" {
		t.Fatalf("delivered = %#v, want the in-flight batch", delivered)
	}
	if acks := gw.ackCalls(); !reflect.DeepEqual(acks, [][]string{{"B"}}) {
		t.Fatalf("acks = %v, want [[B]]", acks)
	}
}

func TestWatermark_MonotonicUnderRacingCycles(t *testing.T) {
	ctx := context.Background()
	early := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{fetch: func(call int) ([]gateway.Row, error) {
		if call == 1 {
			close(entered)
			<-release
			return rows("X"), nil
		}
		return rows("Y"), nil
	}}
	clock := &fakeClock{t: early}
	st := tokenStore()
	e := New(gw, st, WithClock(clock.Now))

	go e.RefreshNow(ctx, nil)
	<-entered

	clock.set(late)
	e.RefreshNow(ctx, nil)
	if wm := e.Watermark(); !wm.Equal(late) {
		t.Fatalf("Watermark after fast cycle = %v, want %v", wm, late)
	}

	clock.set(early)
	close(release)
	e.Wait()

	if wm := e.Watermark(); !wm.Equal(late) {
		t.Fatalf("Watermark after slow cycle = %v, want %v", wm, late)
	}
	stored, _, _ := st.Get(ctx, storage.KeyLastSyncTime)
	if stored != late.Format(time.RFC3339Nano) {
		t.Fatalf("stored watermark = %q, want %q", stored, late.Format(time.RFC3339Nano))
	}
}

func TestHealth_IsOfflineThreshold(t *testing.T) {
	tests := []struct {
		failures int
		want     bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{5, true},
	}
	for _, tt := range tests {
		if got := (Health{ConsecutiveFailures: tt.failures}).IsOffline(); got != tt.want {
			t.Errorf("IsOffline(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}
