package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
)

// CaptureFlow is the part of capture.Flow the panel API drives.
type CaptureFlow interface {
	Snapshot() capture.Snapshot
	Subscribe(obs capture.Observer) func()
	Start(req capture.Request) error
	Retry() error
	CaptureAnother() error
	Dismiss() error
	Cancel() bool
}

// CaptureHandler exposes the capture panel over HTTP
type CaptureHandler struct {
	flow   CaptureFlow
	branch string
	log    *zerolog.Logger
}

// NewCaptureHandler creates a capture handler. branch is used for marking
// when the request does not name one.
func NewCaptureHandler(flow CaptureFlow, branch string) *CaptureHandler {
	return &CaptureHandler{
		flow:   flow,
		branch: branch,
		log:    logger.Named("web"),
	}
}

// EnrollRequest is the body of POST /capture/enroll
type EnrollRequest struct {
	AdmissionNo string `json:"admission_no"`
	Name        string `json:"name"`
}

// MarkRequest is the body of POST /capture/mark
type MarkRequest struct {
	Branch string `json:"branch"`
}

// Get returns the current view
func (h *CaptureHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, capture.Present(h.flow.Snapshot()))
}

// Enroll starts an enrollment capture
func (h *CaptureHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	h.start(w, capture.EnrollRequest(req.AdmissionNo, req.Name))
}

// Mark starts an attendance capture
func (h *CaptureHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Branch == "" {
		req.Branch = h.branch
	}
	h.start(w, capture.MarkRequest(req.Branch))
}

func (h *CaptureHandler) start(w http.ResponseWriter, req capture.Request) {
	if err := h.flow.Start(req); err != nil {
		h.log.Info().Err(err).Str("mode", string(req.Mode)).Str("subject", sanitizeForLog(req.Subject())).Msg("capture refused")
		respondError(w, statusForFlowError(err), err.Error())
		return
	}
	h.accepted(w)
}

// Retry restarts after an error or a no-match
func (h *CaptureHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.flow.Retry)
}

// Another starts a new capture after a success
func (h *CaptureHandler) Another(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.flow.CaptureAnother)
}

// Dismiss acknowledges a duplicate warning or clears a finished attempt
func (h *CaptureHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.flow.Dismiss)
}

// Cancel abandons the current attempt. Cancelling an idle panel is not an error.
func (h *CaptureHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.flow.Cancel()
	respondJSON(w, http.StatusOK, capture.Present(h.flow.Snapshot()))
}

func (h *CaptureHandler) act(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		respondError(w, statusForFlowError(err), err.Error())
		return
	}
	h.accepted(w)
}

func (h *CaptureHandler) accepted(w http.ResponseWriter) {
	respondJSON(w, http.StatusAccepted, capture.Present(h.flow.Snapshot()))
}

// Events streams a view per accepted transition. Intermediate snapshots may
// be coalesced when the client is slow; the latest one is always sent.
func (h *CaptureHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	updates := make(chan struct{}, 1)
	unsubscribe := h.flow.Subscribe(func(capture.Snapshot) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	last := h.flow.Snapshot()
	sendSSEEvent(w, flusher, "status", capture.Present(last))

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			sendSSEComment(w, flusher, "ping")
		case <-updates:
			s := h.flow.Snapshot()
			if s.Rev == last.Rev {
				continue
			}
			last = s
			sendSSEEvent(w, flusher, "snapshot", capture.Present(s))
		}
	}
}

func statusForFlowError(err error) int {
	switch {
	case errors.Is(err, capture.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrAlreadyEnrolled),
		errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrAckRequired),
		errors.Is(err, capture.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, capture.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
