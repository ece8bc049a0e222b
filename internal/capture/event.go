package capture

import (
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

// EventType names an input to the state machine.
type EventType string

// Operator events.
const (
	EventStart          EventType = "start"
	EventRetry          EventType = "retry"
	EventCaptureAnother EventType = "capture_another"
	EventDismiss        EventType = "dismiss"
	EventCancel         EventType = "cancel"
)

// Events produced by effects. They carry the attempt they belong to.
const (
	EventDeviceReady    EventType = "device_ready"
	EventDeviceFailed   EventType = "device_failed"
	EventCaptureTimer   EventType = "capture_timer"
	EventSucceeded      EventType = "succeeded"
	EventDuplicate      EventType = "duplicate"
	EventNoMatch        EventType = "no_match"
	EventFailed         EventType = "failed"
	EventDuplicateShown EventType = "duplicate_shown"
	EventResetTimer     EventType = "reset_timer"
)

// Event is a machine input.
type Event struct {
	Type    EventType
	Attempt uint64
	Request Request
	Outcome *Outcome
	Failure *Failure
	Warning *notify.DuplicateWarning
}

// fromEffect reports whether the event answers an earlier effect and is
// therefore bound to the attempt that issued it.
func (e Event) fromEffect() bool {
	switch e.Type {
	case EventStart, EventRetry, EventCaptureAnother, EventDismiss, EventCancel:
		return false
	}
	return true
}

// EffectType names a side effect requested by a transition.
type EffectType string

// Effects.
const (
	EffectAcquire         EffectType = "acquire"
	EffectScheduleCapture EffectType = "schedule_capture"
	EffectSampleSubmit    EffectType = "sample_submit"
	EffectRelease         EffectType = "release"
	EffectScheduleReset   EffectType = "schedule_reset"
	// EffectCancelPending stops timers and aborts in-flight acquisition
	// or submission of the current attempt.
	EffectCancelPending   EffectType = "cancel_pending"
	EffectNotifyDuplicate EffectType = "notify_duplicate"
	EffectAcknowledge     EffectType = "acknowledge"
	EffectRefreshStats    EffectType = "refresh_stats"
	EffectMarkEnrolled    EffectType = "mark_enrolled"
)

// Effect is a side effect for the interpreter to run.
type Effect struct {
	Type        EffectType
	Attempt     uint64
	Delay       time.Duration
	Warning     *notify.DuplicateWarning
	AdmissionNo string
}
