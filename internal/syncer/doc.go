// Package syncer pulls pending orders from the gateway into the kitchen.
//
// An Engine runs the same cycle from its ticker and from RefreshNow:
//
//  1. Read the device token. Without one there is nothing to sync.
//  2. Fetch rows for the token created after the watermark.
//  3. On failure, log and count it in Health. Nothing else changes.
//  4. On a non-empty result, raise the watermark to the fetch completion
//     time and persist it, acknowledge the rows, then pass them to the
//     callback as new orders.
//
// A failed acknowledgement is only logged. The rows come back on a later
// cycle unless the watermark has already moved past them. Callers dedupe by
// id (see state.Board.Merge).
//
// The watermark only ever moves forward, both in memory and in storage,
// even when cycles overlap.
package syncer
