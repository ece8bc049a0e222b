package backend

import (
	"context"
	"fmt"
	"math"

	"github.com/kozaktomas/attendance-kiosk/internal/frame"
)

// EnrollFace submits a face for the given student. A backend rejection is
// returned as an outcome, not an error; the error is reserved for transport
// failures and unreadable responses.
func (c *Client) EnrollFace(ctx context.Context, admissionNo, name string, image frame.Payload) (EnrollmentOutcome, error) {
	env, status, err := c.postEnvelope(ctx, "enroll_face", enrollRequest{
		AdmissionNo: admissionNo,
		Name:        name,
		Image:       string(image),
	})
	if err != nil {
		return EnrollmentOutcome{}, err
	}

	if *env.Success {
		return EnrollmentOutcome{Status: EnrollSuccess, Message: env.Message, HTTPStatus: status}, nil
	}

	if env.Code == "duplicate_face" || isDuplicateMessage(env.Error, c.markers) {
		return EnrollmentOutcome{
			Status:     EnrollDuplicateFace,
			Message:    env.Error,
			Code:       env.Code,
			HTTPStatus: status,
			Kind:       KindDuplicateFace,
		}, nil
	}

	return EnrollmentOutcome{
		Status:     EnrollOtherError,
		Message:    env.Error,
		Code:       env.Code,
		HTTPStatus: status,
		Kind:       kindFor(env.Code, status),
	}, nil
}

// MarkAttendance submits a face for recognition within a branch.
//
// A success=false response without a reason code is reported as a no-match
// flagged Ambiguous; with a code it is a failure of the matching kind. A
// match whose confidence is missing or outside [0,1] is rejected with an
// error wrapping ErrConfidenceRange.
func (c *Client) MarkAttendance(ctx context.Context, branch string, image frame.Payload) (RecognitionResult, error) {
	env, status, err := c.postEnvelope(ctx, "mark_attendance", markRequest{
		Image:  string(image),
		Branch: branch,
	})
	if err != nil {
		return RecognitionResult{}, err
	}

	if !*env.Success {
		if env.Code == "" {
			return RecognitionResult{
				Status:     RecognitionNoMatch,
				Message:    env.Error,
				Ambiguous:  true,
				HTTPStatus: status,
			}, nil
		}
		if env.Code == "no_match" {
			return RecognitionResult{Status: RecognitionNoMatch, Message: env.Error, Code: env.Code, HTTPStatus: status}, nil
		}
		return RecognitionResult{
			Status:     RecognitionFailed,
			Message:    env.Error,
			Code:       env.Code,
			Kind:       kindFor(env.Code, status),
			HTTPStatus: status,
		}, nil
	}

	confidence, err := parseConfidence(env.Confidence)
	if err != nil {
		return RecognitionResult{}, &Error{Kind: KindUnknown, Status: status, Err: fmt.Errorf("%w: %v", ErrConfidenceRange, err)}
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return RecognitionResult{}, &Error{
			Kind:   KindUnknown,
			Status: status,
			Err:    fmt.Errorf("%w: got %v", ErrConfidenceRange, confidence),
		}
	}

	return RecognitionResult{
		Status:      RecognitionMatched,
		Student:     env.Student,
		AdmissionNo: env.AdmissionNo,
		Confidence:  confidence,
		Session:     env.Session,
		Message:     env.Message,
		HTTPStatus:  status,
	}, nil
}
