package database

import (
	"context"
)

// Journal stores finished capture attempts
type Journal interface {
	// Record stores one outcome
	Record(ctx context.Context, rec OutcomeRecord) error
	// Recent returns the newest outcomes first, at most limit of them
	Recent(ctx context.Context, limit int) ([]OutcomeRecord, error)
	// CountByState returns the number of recorded outcomes per state
	CountByState(ctx context.Context) (map[string]int, error)
}
