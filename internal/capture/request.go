package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects what a capture is for.
type Mode string

// Capture modes.
const (
	ModeEnroll Mode = "enroll"
	ModeMark   Mode = "mark"
)

// Request is what an operator asks the flow to capture. It is immutable
// once submitted.
type Request struct {
	Mode        Mode   `json:"mode" validate:"required,oneof=enroll mark"`
	AdmissionNo string `json:"admission_no,omitempty" validate:"required_if=Mode enroll,max=64"`
	Name        string `json:"name,omitempty" validate:"required_if=Mode enroll,max=128"`
	Branch      string `json:"branch,omitempty" validate:"required_if=Mode mark,max=32"`
}

// EnrollRequest builds an enrollment request.
func EnrollRequest(admissionNo, name string) Request {
	return Request{Mode: ModeEnroll, AdmissionNo: admissionNo, Name: name}
}

// MarkRequest builds an attendance request for a branch.
func MarkRequest(branch string) Request {
	return Request{Mode: ModeMark, Branch: branch}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims surrounding whitespace from every field.
func (r Request) Normalize() Request {
	r.Mode = Mode(strings.ToLower(strings.TrimSpace(string(r.Mode))))
	r.AdmissionNo = strings.TrimSpace(r.AdmissionNo)
	r.Name = strings.TrimSpace(r.Name)
	r.Branch = strings.TrimSpace(r.Branch)
	return r
}

// Validate checks mode-dependent required fields.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldName(fe.Field())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fieldName(fe.Field()), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fieldName(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fieldName(fe.Field())))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Subject returns the admission number for enrollment, or the branch for marking.
func (r Request) Subject() string {
	if r.Mode == ModeEnroll {
		return r.AdmissionNo
	}
	return r.Branch
}

func fieldName(field string) string {
	switch field {
	case "AdmissionNo":
		return "admission_no"
	case "Name":
		return "name"
	case "Branch":
		return "branch"
	case "Mode":
		return "mode"
	}
	return strings.ToLower(field)
}
