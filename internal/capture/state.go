package capture

import (
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

// State is a capture flow state.
type State string

// Flow states.
const (
	StateIdle             State = "idle"
	StateStarting         State = "starting"
	StateDetecting        State = "detecting"
	StateProcessing       State = "processing"
	StateSuccess          State = "success"
	StateNoMatch          State = "no_match"
	StateError            State = "error"
	StateDuplicateWarning State = "duplicate_warning"
)

// Busy reports whether the flow holds or is acquiring the camera.
func (s State) Busy() bool {
	switch s {
	case StateStarting, StateDetecting, StateProcessing:
		return true
	}
	return false
}

// Terminal reports whether the attempt has finished.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateNoMatch, StateError, StateDuplicateWarning:
		return true
	}
	return false
}

// FailureKind is the top-level error taxonomy.
type FailureKind string

// Failure kinds.
const (
	FailureCamera  FailureKind = "camera"
	FailureNetwork FailureKind = "network"
	FailureBackend FailureKind = "backend"
	// FailureCapture is a local sampling or encoding failure.
	FailureCapture FailureKind = "capture"
)

// Failure reasons within a kind.
const (
	ReasonPermissionDenied  = "permission_denied"
	ReasonDeviceUnavailable = "device_unavailable"
	ReasonValidation        = "validation"
	ReasonDuplicateFace     = "duplicate_face"
	ReasonNotFound          = "not_found"
	ReasonUnknown           = "unknown"
)

// Failure describes why an attempt ended in Error. Message is shown verbatim.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
}

// Outcome is the result of a Success or NoMatch attempt. Ambiguous marks a
// no-match the backend reported without a reason code; it may hide a
// server-side fault.
type Outcome struct {
	Message     string  `json:"message,omitempty"`
	Student     string  `json:"student,omitempty"`
	AdmissionNo string  `json:"admission_no,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Session     string  `json:"session,omitempty"`
	Ambiguous   bool    `json:"ambiguous,omitempty"`
}

// Snapshot is the complete, immutable state of a flow.
//
// Attempt increases on every new cycle and on cancel; events stamped with an
// older attempt are discarded. Rev increases on every accepted transition.
// AwaitingAck blocks Retry until the duplicate warning is dismissed.
type Snapshot struct {
	FlowID      string                   `json:"flow_id"`
	State       State                    `json:"state"`
	Attempt     uint64                   `json:"attempt"`
	Rev         uint64                   `json:"rev"`
	Request     Request                  `json:"request"`
	Outcome     *Outcome                 `json:"outcome,omitempty"`
	Failure     *Failure                 `json:"failure,omitempty"`
	Duplicate   *notify.DuplicateWarning `json:"duplicate,omitempty"`
	AwaitingAck bool                     `json:"awaiting_ack"`
}
