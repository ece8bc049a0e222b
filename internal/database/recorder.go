package database

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
)

const recorderQueue = 64

// Recorder journals terminal snapshots in the background so that a slow
// database never holds up observer delivery. Each attempt is recorded once;
// attempts only grow within a flow, so the last recorded one per flow suffices.
type Recorder struct {
	journal Journal
	now     func() time.Time
	log     *zerolog.Logger
	queue   chan OutcomeRecord

	mu   sync.Mutex
	last map[string]uint64
}

// NewRecorder creates a recorder writing to journal.
func NewRecorder(journal Journal) *Recorder {
	return &Recorder{
		journal: journal,
		now:     time.Now,
		log:     logger.Named("journal"),
		queue:   make(chan OutcomeRecord, recorderQueue),
		last:    make(map[string]uint64),
	}
}

// Observe is a capture.Observer.
func (r *Recorder) Observe(s capture.Snapshot) {
	if !Recordable(s) {
		return
	}

	r.mu.Lock()
	if last, ok := r.last[s.FlowID]; ok && s.Attempt <= last {
		r.mu.Unlock()
		return
	}
	r.last[s.FlowID] = s.Attempt
	r.mu.Unlock()

	select {
	case r.queue <- RecordFromSnapshot(s, r.now()):
	default:
		r.log.Warn().Str("flow", s.FlowID).Uint64("attempt", s.Attempt).Msg("journal queue full, dropping outcome")
	}
}

// Run writes queued records until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec OutcomeRecord) {
	if err := r.journal.Record(ctx, rec); err != nil {
		r.log.Error().Err(err).Str("flow", rec.FlowID).Uint64("attempt", rec.Attempt).Msg("could not record outcome")
		return
	}
	r.log.Debug().Str("flow", rec.FlowID).Uint64("attempt", rec.Attempt).Str("state", rec.State).Msg("outcome recorded")
}
