// Package capture drives one capture panel: camera acquisition, the settle
// delay, sampling, submission and outcome handling. Machine is the pure
// transition function; Flow interprets its effects.
package capture

import (
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

// Default timings.
const (
	DefaultSettleDelay  = time.Second
	DefaultNoMatchReset = 3 * time.Second
)

// Machine computes transitions. It holds only timing configuration.
type Machine struct {
	Settle       time.Duration
	NoMatchReset time.Duration
}

// NewMachine creates a machine; non-positive delays use the defaults.
func NewMachine(settle, noMatchReset time.Duration) Machine {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if noMatchReset <= 0 {
		noMatchReset = DefaultNoMatchReset
	}
	return Machine{Settle: settle, NoMatchReset: noMatchReset}
}

// Transition returns the next snapshot and the effects to run. An event
// that does not apply in the current state, or that belongs to an earlier
// attempt, returns s unchanged and no effects; callers detect acceptance by
// comparing Rev.
func (m Machine) Transition(s Snapshot, ev Event) (Snapshot, []Effect) {
	if ev.fromEffect() && ev.Attempt != s.Attempt {
		return s, nil
	}

	next := s
	var effects []Effect

	switch ev.Type {
	case EventStart:
		if s.State != StateIdle {
			return s, nil
		}
		next = m.begin(s, ev.Request)
		effects = []Effect{{Type: EffectAcquire, Attempt: next.Attempt}}

	case EventDeviceReady:
		if s.State != StateStarting {
			return s, nil
		}
		next.State = StateDetecting
		effects = []Effect{{Type: EffectScheduleCapture, Attempt: s.Attempt, Delay: m.Settle}}

	case EventDeviceFailed:
		if s.State != StateStarting {
			return s, nil
		}
		next.State = StateError
		next.Failure = ev.Failure
		effects = []Effect{{Type: EffectRelease, Attempt: s.Attempt}}

	case EventCaptureTimer:
		if s.State != StateDetecting {
			return s, nil
		}
		next.State = StateProcessing
		effects = []Effect{{Type: EffectSampleSubmit, Attempt: s.Attempt}}

	case EventSucceeded:
		if s.State != StateProcessing {
			return s, nil
		}
		next.State = StateSuccess
		next.Outcome = ev.Outcome
		effects = []Effect{
			{Type: EffectRelease, Attempt: s.Attempt},
			{Type: EffectRefreshStats, Attempt: s.Attempt},
		}
		if s.Request.Mode == ModeEnroll {
			effects = append(effects, Effect{Type: EffectMarkEnrolled, Attempt: s.Attempt, AdmissionNo: s.Request.AdmissionNo})
		}

	case EventDuplicate:
		if s.State != StateProcessing || ev.Warning == nil {
			return s, nil
		}
		next.State = StateDuplicateWarning
		next.Duplicate = ev.Warning
		next.Failure = &Failure{Kind: FailureBackend, Reason: ReasonDuplicateFace, Message: ev.Warning.Message}
		effects = []Effect{
			{Type: EffectRelease, Attempt: s.Attempt},
			{Type: EffectNotifyDuplicate, Attempt: s.Attempt, Warning: ev.Warning},
		}

	case EventDuplicateShown:
		if s.State != StateDuplicateWarning {
			return s, nil
		}
		next.State = StateError
		next.AwaitingAck = true

	case EventNoMatch:
		if s.State != StateProcessing {
			return s, nil
		}
		next.State = StateNoMatch
		next.Outcome = ev.Outcome
		effects = []Effect{
			{Type: EffectRelease, Attempt: s.Attempt},
			{Type: EffectScheduleReset, Attempt: s.Attempt, Delay: m.NoMatchReset},
		}

	case EventFailed:
		if s.State != StateProcessing {
			return s, nil
		}
		next.State = StateError
		next.Failure = ev.Failure
		effects = []Effect{{Type: EffectRelease, Attempt: s.Attempt}}

	case EventResetTimer:
		if s.State != StateNoMatch {
			return s, nil
		}
		next = idle(s)

	case EventRetry:
		switch {
		case s.State == StateError && !s.AwaitingAck:
			next = m.begin(s, s.Request)
			effects = []Effect{{Type: EffectAcquire, Attempt: next.Attempt}}
		case s.State == StateNoMatch:
			next = m.begin(s, s.Request)
			effects = []Effect{
				{Type: EffectCancelPending, Attempt: s.Attempt},
				{Type: EffectAcquire, Attempt: next.Attempt},
			}
		default:
			return s, nil
		}

	case EventCaptureAnother:
		if s.State != StateSuccess {
			return s, nil
		}
		next = idle(s)

	case EventDismiss:
		switch s.State {
		case StateDuplicateWarning:
			next.State = StateError
			next.AwaitingAck = false
			effects = []Effect{{Type: EffectAcknowledge, Attempt: s.Attempt}}
		case StateError:
			if s.AwaitingAck {
				next.AwaitingAck = false
				effects = []Effect{{Type: EffectAcknowledge, Attempt: s.Attempt}}
			} else {
				next = idle(s)
			}
		case StateNoMatch:
			next = idle(s)
			effects = []Effect{{Type: EffectCancelPending, Attempt: s.Attempt}}
		case StateSuccess:
			next = idle(s)
		default:
			return s, nil
		}

	case EventCancel:
		if s.State == StateIdle {
			return s, nil
		}
		next = idle(s)
		next.Attempt = s.Attempt + 1
		effects = []Effect{
			{Type: EffectCancelPending, Attempt: s.Attempt},
			{Type: EffectRelease, Attempt: s.Attempt},
		}
		if s.AwaitingAck || s.State == StateDuplicateWarning {
			effects = append(effects, Effect{Type: EffectAcknowledge, Attempt: s.Attempt})
		}

	default:
		return s, nil
	}

	next.Rev = s.Rev + 1
	return next, effects
}

// begin opens a new attempt for req.
func (m Machine) begin(s Snapshot, req Request) Snapshot {
	return Snapshot{
		FlowID:  s.FlowID,
		State:   StateStarting,
		Attempt: s.Attempt + 1,
		Request: req,
	}
}

// idle clears the attempt but keeps the last request for display.
func idle(s Snapshot) Snapshot {
	return Snapshot{
		FlowID:  s.FlowID,
		State:   StateIdle,
		Attempt: s.Attempt,
		Request: s.Request,
	}
}

// duplicateWarning builds the notice for a rejected enrollment.
func duplicateWarning(req Request, message string, at time.Time) *notify.DuplicateWarning {
	return &notify.DuplicateWarning{
		Message:     message,
		AdmissionNo: req.AdmissionNo,
		Name:        req.Name,
		RaisedAt:    at,
	}
}
