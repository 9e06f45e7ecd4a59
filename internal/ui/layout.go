package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutWideWidth is the width at which the kitchen grid switches from
	// two card columns to three.
	LayoutWideWidth = 120

	// LayoutCompactWidth is the threshold below which the header drops labels.
	LayoutCompactWidth = 100
)

// Card geometry.
const (
	cardHeight  = 9 // including border
	cardGap     = 1
	minCardText = 16
)

// adminLogLines is how many log records the admin screen shows.
const adminLogLines = 8

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval. It keeps relative
	// times and the sync badge current between board changes.
	DefaultUIInterval = time.Second
)

// gridColumns returns how many card columns fit a terminal of width.
func gridColumns(width int) int {
	if width >= LayoutWideWidth {
		return 3
	}
	return 2
}
