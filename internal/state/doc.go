// Package state holds the kitchen's order board.
//
// # Overview
//
// The Board is where sync results meet the kitchen. The sync engine merges
// newly delivered orders into it; the UI reads snapshots, advances
// statuses and removes completed orders.
//
//	Sync engine:                    UI:
//	┌────────────────┐            ┌──────────────────┐
//	│ FetchPending() │            │ board.Snapshot() │
//	│      ↓         │            │ board.Advance()  │
//	│ board.Merge()  │───────────→│ board.Complete() │
//	└────────────────┘  (mutex)   └──────────────────┘
//
// # Persistence
//
// Every mutation writes the whole collection as a JSON array under
// storage.KeyOrders while the board lock is held, so the stored blob is
// always the same as memory after a successful write. Load restores it at
// startup.
//
// A failed write is returned to the caller but the in-memory mutation is
// kept. The next successful mutation persists everything.
//
// # Merge Semantics
//
// Merge prepends only orders whose ids are not already on the board, and
// evaluates that filter under the lock. An order delivered twice (after a
// failed acknowledgement, or by two overlapping sync cycles) therefore
// appears once, and whatever status the kitchen gave it is kept:
//
//	board: [A(preparing)]
//	Merge([A(new), B(new)])  → [B(new), A(preparing)]
//	Merge([A(new)])          → unchanged, nothing written
//
// # Status Flow
//
// Orders move new → preparing → ready, one step at a time. Backward moves
// and skips return ErrInvalidTransition. Only a ready order can be
// completed; Complete removes it from the board.
//
// # Change Notification
//
// Subscribe returns a channel with a buffer of one. Mutations do a
// non-blocking send, so bursts collapse into a single redraw.
package state
