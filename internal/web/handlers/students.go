package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance-kiosk/internal/backend"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/roster"
)

// StudentDirectory is the backend lookup used by the panel.
type StudentDirectory interface {
	ListStudents(ctx context.Context, branch string) ([]roster.Entry, error)
	TodayAttendance(ctx context.Context, branch string) ([]backend.AttendanceRecord, error)
}

// StudentsHandler serves roster and attendance listings
type StudentsHandler struct {
	directory StudentDirectory
	journal   database.Journal
}

// NewStudentsHandler creates a new students handler. journal may be nil.
func NewStudentsHandler(directory StudentDirectory, journal database.Journal) *StudentsHandler {
	return &StudentsHandler{directory: directory, journal: journal}
}

// List returns the students of a branch
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	branch := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "branch")))
	if branch == "" {
		respondError(w, http.StatusBadRequest, "missing branch")
		return
	}

	entries, err := h.directory.ListStudents(r.Context(), branch)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	if entries == nil {
		entries = []roster.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Today returns the students marked present today in a branch
func (h *StudentsHandler) Today(w http.ResponseWriter, r *http.Request) {
	branch := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "branch")))
	if branch == "" {
		respondError(w, http.StatusBadRequest, "missing branch")
		return
	}

	records, err := h.directory.TodayAttendance(r.Context(), branch)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	if records == nil {
		records = []backend.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// OutcomeResponse is one journaled capture attempt
type OutcomeResponse struct {
	ID            string  `json:"id"`
	FlowID        string  `json:"flow_id"`
	Attempt       uint64  `json:"attempt"`
	Mode          string  `json:"mode"`
	Subject       string  `json:"subject"`
	State         string  `json:"state"`
	FailureKind   string  `json:"failure_kind,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	Message       string  `json:"message,omitempty"`
	Student       string  `json:"student,omitempty"`
	AdmissionNo   string  `json:"admission_no,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Ambiguous     bool    `json:"ambiguous,omitempty"`
	RecordedAt    string  `json:"recorded_at"`
}

// Outcomes returns the newest journaled capture attempts (?limit=, default 50)
func (h *StudentsHandler) Outcomes(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		respondError(w, http.StatusNotFound, "outcome journal not configured")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not read outcome journal")
		return
	}

	out := make([]OutcomeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, OutcomeResponse{
			ID:            rec.ID.String(),
			FlowID:        rec.FlowID,
			Attempt:       rec.Attempt,
			Mode:          rec.Mode,
			Subject:       rec.Subject,
			State:         rec.State,
			FailureKind:   rec.FailureKind,
			FailureReason: rec.FailureReason,
			Message:       rec.Message,
			Student:       rec.Student,
			AdmissionNo:   rec.AdmissionNo,
			Confidence:    rec.Confidence,
			Ambiguous:     rec.Ambiguous,
			RecordedAt:    rec.RecordedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// respondBackendError maps a backend failure to a gateway response.
func respondBackendError(w http.ResponseWriter, err error) {
	if backend.IsTransport(err) {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if be, ok := backend.AsError(err); ok {
		switch be.Kind {
		case backend.KindNotFound:
			respondError(w, http.StatusNotFound, be.Error())
		case backend.KindValidation:
			respondError(w, http.StatusBadRequest, be.Error())
		default:
			respondError(w, http.StatusBadGateway, be.Error())
		}
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
