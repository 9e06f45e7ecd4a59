// Package order defines the kitchen order model and the pure reconciliation
// helpers used by the board.
//
// An Order moves through a fixed, forward-only lifecycle:
//
//	new ──> preparing ──> ready ──> (removed)
//
// Status.Next returns the only allowed successor; there is no backward step
// and no skip. Removal is not a status: completed orders leave the board.
//
// Merge is the dedup step applied to every freshly fetched batch. It keys on
// Order.ID only and never touches an order that is already present, which
// makes re-delivery of the same gateway row harmless.
//
// Money wraps shopspring/decimal so totals keep exact cents and encode as
// plain JSON numbers in the persisted collection.
package order
