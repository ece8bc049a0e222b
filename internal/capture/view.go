package capture

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

var printer = message.NewPrinter(language.English)

// View is what a capture panel renders for a snapshot. Live is set while
// the camera preview should be shown.
type View struct {
	State             State       `json:"state"`
	Title             string      `json:"title"`
	Message           string      `json:"message,omitempty"`
	Student           string      `json:"student,omitempty"`
	Admission         string      `json:"admission_no,omitempty"`
	Confidence        string      `json:"confidence,omitempty"`
	Ambiguous         bool        `json:"ambiguous,omitempty"`
	Live              bool        `json:"live"`
	CanStart          bool        `json:"can_start"`
	CanRetry          bool        `json:"can_retry"`
	CanCaptureAnother bool        `json:"can_capture_another"`
	CanDismiss        bool        `json:"can_dismiss"`
	CanCancel         bool        `json:"can_cancel"`
	Notice            *NoticeView `json:"notice,omitempty"`
	Snapshot          Snapshot    `json:"snapshot"`
}

// NoticeView is the blocking duplicate-enrollment dialog.
type NoticeView struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// FormatConfidence renders a [0,1] score as a percentage with one decimal, e.g. 93.0%.
func FormatConfidence(c float64) string {
	return printer.Sprintf("%.1f%%", c*100)
}

// Present maps a snapshot to its view.
func Present(s Snapshot) View {
	v := View{State: s.State, Snapshot: s, CanCancel: s.State != StateIdle}

	switch s.State {
	case StateIdle:
		v.CanStart = true
		if s.Request.Mode == ModeEnroll {
			v.Title = "Ready to enroll"
		} else {
			v.Title = "Ready to mark attendance"
		}
	case StateStarting:
		v.Title = "Starting camera..."
		v.Live = true
	case StateDetecting:
		v.Title = "Detecting face..."
		v.Live = true
	case StateProcessing:
		v.Title = "Sending to server..."
		v.Live = true
	case StateSuccess:
		v.CanCaptureAnother = true
		v.CanDismiss = true
		if s.Request.Mode == ModeEnroll {
			v.Title = "Face Enrolled!"
		} else {
			v.Title = "Attendance Marked!"
		}
		if o := s.Outcome; o != nil {
			v.Message = o.Message
			v.Student = o.Student
			v.Admission = o.AdmissionNo
			if s.Request.Mode == ModeMark {
				v.Confidence = FormatConfidence(o.Confidence)
			}
		}
	case StateNoMatch:
		v.Title = "No Face Detected"
		v.CanRetry = true
		v.CanDismiss = true
		if o := s.Outcome; o != nil {
			v.Message = o.Message
			v.Ambiguous = o.Ambiguous
		}
	case StateDuplicateWarning, StateError:
		v.Title = "Detection Failed"
		v.CanRetry = !s.AwaitingAck && s.State == StateError
		v.CanDismiss = true
		if s.Failure != nil {
			v.Message = s.Failure.Message
		}
	}

	if s.Duplicate != nil && (s.AwaitingAck || s.State == StateDuplicateWarning) {
		v.Title = notify.DuplicateTitle
		v.Notice = &NoticeView{Title: notify.DuplicateTitle, Message: s.Duplicate.Message}
	}
	return v
}
