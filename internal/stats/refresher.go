// Package stats keeps the dashboard aggregates fresh: a periodic refresh
// owned by its caller's context plus out-of-band refreshes after each
// successful capture.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/attendance-kiosk/internal/backend"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
)

// DefaultInterval is the periodic refresh interval.
const DefaultInterval = 30 * time.Second

// Fetcher loads the current aggregates.
type Fetcher interface {
	Stats(ctx context.Context) (backend.Stats, error)
}

// Snapshot is the last refresh result. Err is set when the last fetch
// failed; Stats then still holds the previous good value.
type Snapshot struct {
	Stats     backend.Stats `json:"stats"`
	FetchedAt time.Time     `json:"fetched_at"`
	Err       string        `json:"error,omitempty"`
}

// Refresher polls a Fetcher on an interval and on demand.
type Refresher struct {
	fetcher  Fetcher
	interval time.Duration
	trigger  chan struct{}
	log      *zerolog.Logger

	mu       sync.RWMutex
	latest   Snapshot
	fetches  int
	onUpdate []func(Snapshot)
}

// NewRefresher creates a refresher; a non-positive interval means DefaultInterval.
func NewRefresher(f Fetcher, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		fetcher:  f,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		log:      logger.Named("stats"),
	}
}

// OnUpdate registers a callback invoked after every fetch. Register before Run.
func (r *Refresher) OnUpdate(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// Run fetches immediately, then on every tick and trigger, until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.trigger:
			r.refresh(ctx)
		}
	}
}

// Trigger requests an immediate refresh. It never blocks; triggers that
// arrive while one is queued are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Latest returns the most recent snapshot.
func (r *Refresher) Latest() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Fetches returns how many fetches have completed.
func (r *Refresher) Fetches() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetches
}

func (r *Refresher) refresh(ctx context.Context) {
	s, err := r.fetcher.Stats(ctx)
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	r.fetches++
	if err != nil {
		r.latest.Err = err.Error()
		r.log.Warn().Err(err).Msg("stats refresh failed")
	} else {
		r.latest = Snapshot{Stats: s, FetchedAt: time.Now()}
		r.log.Debug().Int("total", s.Total).Int("today_present", s.TodayPresent).Msg("stats refreshed")
	}
	snap := r.latest
	callbacks := r.onUpdate
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}
