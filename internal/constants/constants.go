// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Batch enrollment constants
const (
	// DefaultBatchConcurrency is the default number of parallel enrollment workers.
	// The backend runs face detection per request, so keep this low.
	DefaultBatchConcurrency = 3

	// BatchFlowTimeout bounds a single image's capture in batch enrollment
	BatchFlowTimeout = 2 * time.Minute
)

// Command constants
const (
	// DefaultHistoryLimit is the default number of journal entries to show
	DefaultHistoryLimit = 20

	// CaptureTimeout bounds a one-shot enroll or mark command
	CaptureTimeout = time.Minute

	// ShutdownTimeout bounds graceful shutdown of the kiosk server
	ShutdownTimeout = 30 * time.Second

	// RosterLoadTimeout bounds the roster fetch at startup
	RosterLoadTimeout = 15 * time.Second

	// RosterRefreshInterval is how often the kiosk server reloads the roster
	RosterRefreshInterval = 5 * time.Minute
)
