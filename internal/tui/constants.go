package tui

import "time"

const (
	// TickInterval governs how often the status table re-polls the scheduler.
	TickInterval = 200 * time.Millisecond

	// Layout Offsets and Padding
	HeaderWidthOffset      = 2
	ProgressBarWidthOffset = 4
	DefaultPaddingX        = 1
	DefaultPaddingY        = 0

	// Viewport layout
	CardHeight   = 2 // Compact rows, one per task
	HeaderHeight = 4 // Title + column header + rule
)
