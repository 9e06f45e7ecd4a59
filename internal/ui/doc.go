// Package ui provides the kitchen display terminal interface.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model holds presentation state only; the
// orders themselves live in state.Board and are read through snapshots.
//
// # Package Structure
//
//   - app.go: Model, messages, commands and Run
//   - kitchen.go: the card grid and its selection
//   - detail.go: the order overlay and its single next action
//   - admin.go: device pairing and the webhook example
//   - header.go: status bar, command bar and status line
//   - modal.go: y/n confirmation for irreversible actions
//   - help.go, keys.go, theme.go, style_helpers.go: presentation helpers
//
// # Screens
//
//   - Kitchen: cards newest first, two columns below 120 cells and three
//     at or above. Each card shows number, status, time, store, POS, item
//     count, total and remarks.
//   - Detail (enter): line items with modifiers and remarks, and the next
//     step (start preparing, mark ready, complete). Completing asks y/n.
//   - Admin (a): device id, token and webhook URL with an example request.
//     Copy token (c), copy URL (u), regenerate token (R, asks y/n).
//
// # Event Flow
//
//  1. Init fetches a snapshot and waits on board.Subscribe
//  2. Each board change delivers a new snapshot; ids not seen before ring
//     the terminal bell when prefs allow
//  3. A one second tick refreshes sync health for the offline badge and
//     relative times
//  4. Actions run as commands and report back through the status line
//
// # Key Bindings
//
//   - arrows or hjkl: select a card
//   - enter: open order / apply next step
//   - r: refresh now
//   - a: admin screen
//   - T: cycle theme (saved to prefs)
//   - ?: help
//   - esc: back
//   - ctrl+c: quit
package ui
