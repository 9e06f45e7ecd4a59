package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/storage"
)

var (
	// ErrNotFound is returned when no order on the board has the given id.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for any status change other than the
	// single forward step.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotReady is returned when completing an order that is not ready.
	ErrNotReady = errors.New("order is not ready")
)

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	Orders      []order.Order
	LastChanged time.Time
}

// Count returns the number of orders in the snapshot.
func (s Snapshot) Count() int { return len(s.Orders) }

// CountByStatus tallies orders per status.
func (s Snapshot) CountByStatus() map[order.Status]int {
	counts := make(map[order.Status]int, 3)
	for _, o := range s.Orders {
		counts[o.Status]++
	}
	return counts
}

// Board owns the in-memory order collection and keeps the persisted copy in
// step with it. Every mutation re-persists the full collection.
type Board struct {
	mu          sync.RWMutex
	store       storage.Store
	orders      []order.Order
	lastChanged time.Time
	changed     chan struct{}
	log         *slog.Logger
	now         func() time.Time
}

// NewBoard returns an empty board persisting through st.
func NewBoard(st storage.Store, logger *slog.Logger) *Board {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Board{
		store:   st,
		changed: make(chan struct{}, 1),
		log:     logger.With("component", "board"),
		now:     time.Now,
	}
}

// Load replaces the in-memory collection with the persisted one. A missing
// collection leaves the board empty.
func (b *Board) Load(ctx context.Context) error {
	raw, ok, err := b.store.Get(ctx, storage.KeyOrders)
	if err != nil {
		return fmt.Errorf("read orders: %w", err)
	}
	var orders []order.Order
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &orders); err != nil {
			return fmt.Errorf("decode orders: %w", err)
		}
	}
	orders = dedupe(orders)

	b.mu.Lock()
	b.orders = orders
	b.lastChanged = b.now()
	b.mu.Unlock()

	b.log.Info("loaded board", "event", "board_loaded", "count", len(orders))
	b.notify()
	return nil
}

// Merge prepends the orders of batch whose ids are not on the board and
// persists the result. The id filter runs against the board as it is at
// this call, so overlapping sync cycles cannot drop or duplicate an order.
// It returns how many orders were added; zero means nothing changed and
// nothing was written.
func (b *Board) Merge(ctx context.Context, batch []order.Order) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	merged, added := order.Merge(b.orders, order.CloneAll(batch))
	if len(added) == 0 {
		b.log.Debug("merge skipped, all ids known", "event", "merge_noop", "incoming", len(batch))
		return 0, nil
	}
	b.orders = merged
	b.touchLocked()

	b.log.Info("merged orders", "event", "merged", "added", len(added), "total", len(merged))
	return len(added), b.persistLocked(ctx)
}

// Advance moves the order with id to status to. Only the single forward
// step from its current status is allowed.
func (b *Board) Advance(ctx context.Context, id string, to order.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := order.IndexOf(b.orders, id)
	if idx < 0 {
		return fmt.Errorf("advance %s: %w", id, ErrNotFound)
	}
	from := b.orders[idx].Status
	if !order.CanAdvance(from, to) {
		return fmt.Errorf("advance %s from %s to %s: %w", id, from, to, ErrInvalidTransition)
	}

	updated := make([]order.Order, len(b.orders))
	copy(updated, b.orders)
	updated[idx].Status = to
	b.orders = updated
	b.touchLocked()

	b.log.Info("advanced order", "event", "advanced", "id", id, "from", string(from), "to", string(to))
	return b.persistLocked(ctx)
}

// AdvanceNext applies the one allowed forward step and returns the new
// status. A ready order has no next status.
func (b *Board) AdvanceNext(ctx context.Context, id string) (order.Status, error) {
	current, ok := b.Get(id)
	if !ok {
		return "", fmt.Errorf("advance %s: %w", id, ErrNotFound)
	}
	next, ok := current.Status.Next()
	if !ok {
		return "", fmt.Errorf("advance %s from %s: %w", id, current.Status, ErrInvalidTransition)
	}
	if err := b.Advance(ctx, id, next); err != nil {
		return "", err
	}
	return next, nil
}

// Complete removes the ready order with id. It is terminal; nothing is
// archived.
func (b *Board) Complete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := order.IndexOf(b.orders, id)
	if idx < 0 {
		return fmt.Errorf("complete %s: %w", id, ErrNotFound)
	}
	if b.orders[idx].Status != order.StatusReady {
		return fmt.Errorf("complete %s (%s): %w", id, b.orders[idx].Status, ErrNotReady)
	}
	b.orders, _ = order.Remove(b.orders, id)
	b.touchLocked()

	b.log.Info("completed order", "event", "completed", "id", id, "remaining", len(b.orders))
	return b.persistLocked(ctx)
}

// Get returns a copy of the order with id.
func (b *Board) Get(id string) (order.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := order.IndexOf(b.orders, id)
	if idx < 0 {
		return order.Order{}, false
	}
	return b.orders[idx].Clone(), true
}

// Snapshot returns a deep copy of the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Orders:      order.CloneAll(b.orders),
		LastChanged: b.lastChanged,
	}
}

// Subscribe returns a channel that receives after every mutation. Signals
// coalesce: a slow reader sees at most one pending notification.
func (b *Board) Subscribe() <-chan struct{} {
	return b.changed
}

func (b *Board) touchLocked() {
	b.lastChanged = b.now()
	b.notify()
}

func (b *Board) notify() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// persistLocked writes the full collection. The caller holds b.mu so the
// stored blob always matches memory at the time of the write.
func (b *Board) persistLocked(ctx context.Context) error {
	orders := b.orders
	if orders == nil {
		orders = []order.Order{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	if err := b.store.Set(ctx, storage.KeyOrders, string(data)); err != nil {
		b.log.Error("persist orders failed", "event", "persist_failed", "error", err)
		return fmt.Errorf("persist orders: %w", err)
	}
	return nil
}

// dedupe drops later entries with an id already seen. A collection written
// by an older build could contain duplicates; the board never does.
func dedupe(orders []order.Order) []order.Order {
	merged, _ := order.Merge(nil, orders)
	return merged
}
