package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/stats"
)

const journalCountTimeout = 5 * time.Second

// StatsSource provides the cached aggregates.
type StatsSource interface {
	Latest() stats.Snapshot
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	source  StatsSource
	journal database.Journal
}

// NewStatsHandler creates a new stats handler. journal may be nil.
func NewStatsHandler(source StatsSource, journal database.Journal) *StatsHandler {
	return &StatsHandler{
		source:  source,
		journal: journal,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Total        int            `json:"total"`
	TodayPresent int            `json:"today_present"`
	TodayDate    string         `json:"today_date"`
	FetchedAt    time.Time      `json:"fetched_at"`
	Stale        bool           `json:"stale"`
	Error        string         `json:"error,omitempty"`
	Outcomes     map[string]int `json:"outcomes,omitempty"`
}

// Get returns the last refreshed aggregates. It never calls the backend;
// the refresher owns that.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Latest()
	if snap.FetchedAt.IsZero() {
		msg := "statistics not loaded yet"
		if snap.Err != "" {
			msg = snap.Err
		}
		respondError(w, http.StatusServiceUnavailable, msg)
		return
	}

	resp := StatsResponse{
		Total:        snap.Stats.Total,
		TodayPresent: snap.Stats.TodayPresent,
		TodayDate:    snap.Stats.TodayDate,
		FetchedAt:    snap.FetchedAt,
		Stale:        snap.Err != "",
		Error:        snap.Err,
	}

	if h.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), journalCountTimeout)
		defer cancel()
		if counts, err := h.journal.CountByState(ctx); err == nil {
			resp.Outcomes = counts
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
