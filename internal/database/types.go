package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
)

// OutcomeRecord is one finished capture attempt.
type OutcomeRecord struct {
	ID            uuid.UUID
	FlowID        string
	Attempt       uint64
	Mode          string
	Subject       string // admission number for enrollment, branch for marking
	State         string
	FailureKind   string
	FailureReason string
	Message       string
	Student       string
	AdmissionNo   string
	Confidence    float64
	Ambiguous     bool
	RecordedAt    time.Time
}

// Recordable reports whether a snapshot ends an attempt and should be journaled.
// DuplicateWarning is skipped; the Error that follows it carries the same failure.
func Recordable(s capture.Snapshot) bool {
	switch s.State {
	case capture.StateSuccess, capture.StateNoMatch, capture.StateError:
		return true
	}
	return false
}

// RecordFromSnapshot builds a journal row for a terminal snapshot.
func RecordFromSnapshot(s capture.Snapshot, at time.Time) OutcomeRecord {
	rec := OutcomeRecord{
		ID:         uuid.New(),
		FlowID:     s.FlowID,
		Attempt:    s.Attempt,
		Mode:       string(s.Request.Mode),
		Subject:    s.Request.Subject(),
		State:      string(s.State),
		RecordedAt: at.UTC(),
	}
	if o := s.Outcome; o != nil {
		rec.Message = o.Message
		rec.Student = o.Student
		rec.AdmissionNo = o.AdmissionNo
		rec.Confidence = o.Confidence
		rec.Ambiguous = o.Ambiguous
	}
	if f := s.Failure; f != nil {
		rec.FailureKind = string(f.Kind)
		rec.FailureReason = f.Reason
		rec.Message = f.Message
	}
	if rec.AdmissionNo == "" && s.Request.Mode == capture.ModeEnroll {
		rec.AdmissionNo = s.Request.AdmissionNo
	}
	return rec
}
