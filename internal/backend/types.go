package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// response is the envelope shared by enroll_face and mark_attendance.
type response struct {
	Success     *bool           `json:"success"`
	Message     string          `json:"message"`
	Error       string          `json:"error"`
	Code        string          `json:"code"`
	Student     string          `json:"student"`
	AdmissionNo string          `json:"admission_no"`
	Confidence  json.RawMessage `json:"confidence"`
	Session     string          `json:"session"`
}

type enrollRequest struct {
	AdmissionNo string `json:"admission_no"`
	Name        string `json:"name"`
	Image       string `json:"image"`
}

type markRequest struct {
	Image  string `json:"image"`
	Branch string `json:"branch"`
}

// EnrollStatus is the variant of an EnrollmentOutcome.
type EnrollStatus string

// Enrollment outcomes.
const (
	EnrollSuccess       EnrollStatus = "success"
	EnrollDuplicateFace EnrollStatus = "duplicate_face"
	EnrollOtherError    EnrollStatus = "other_error"
)

// EnrollmentOutcome is the classified enroll_face response. Message is the
// backend text, verbatim. Kind is set for DuplicateFace and OtherError.
type EnrollmentOutcome struct {
	Status     EnrollStatus
	Message    string
	Code       string
	HTTPStatus int
	Kind       ErrorKind
}

// Err returns the outcome as an error, or nil on success.
func (o EnrollmentOutcome) Err() error {
	switch o.Status {
	case EnrollSuccess:
		return nil
	case EnrollDuplicateFace:
		return &Error{Kind: KindDuplicateFace, Code: o.Code, Message: o.Message, Status: o.HTTPStatus}
	default:
		return &Error{Kind: o.Kind, Code: o.Code, Message: o.Message, Status: o.HTTPStatus}
	}
}

// RecognitionStatus is the variant of a RecognitionResult.
type RecognitionStatus string

// Recognition outcomes.
const (
	RecognitionMatched RecognitionStatus = "matched"
	RecognitionNoMatch RecognitionStatus = "no_match"
	RecognitionFailed  RecognitionStatus = "failed"
)

// RecognitionResult is the classified mark_attendance response. Confidence
// is in [0,1] for a match. Ambiguous is set on a no-match that carried no
// reason code; the backend may have failed for another cause.
type RecognitionResult struct {
	Status      RecognitionStatus
	Student     string
	AdmissionNo string
	Confidence  float64
	Session     string
	Message     string
	Code        string
	Ambiguous   bool
	Kind        ErrorKind
	HTTPStatus  int
}

// Success reports whether a student was matched.
func (r RecognitionResult) Success() bool {
	return r.Status == RecognitionMatched
}

// Stats is the aggregate returned by /api/stats.
type Stats struct {
	Total        int    `json:"total"`
	TodayPresent int    `json:"today_present"`
	TodayDate    string `json:"today_date"`
}

// AttendanceRecord is one row of a branch's daily attendance.
type AttendanceRecord struct {
	AdmissionNo string     `json:"admission_no"`
	Name        string     `json:"name"`
	Branch      string     `json:"branch"`
	Timestamp   string     `json:"timestamp"`
	Status      string     `json:"status"`
	Confidence  Confidence `json:"confidence"`
	Session     string     `json:"session"`
}

// Confidence is transmitted as a decimal string ("0.93") and sometimes as a number.
type Confidence float64

// UnmarshalJSON accepts "0.93" and 0.93.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	v, err := parseConfidence(data)
	if err != nil {
		return err
	}
	*c = Confidence(v)
	return nil
}

func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing confidence")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid confidence %q: %w", text, err)
		}
		return v, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid confidence %s: %w", string(raw), err)
	}
	return v, nil
}
