package pipeline

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"resume-intake/internal/resumestore"
	"resume-intake/internal/shared/errs"
)

// Submission is one candidate's input to the pipeline.
type Submission struct {
	Narrative string `json:"narrative" validate:"notblank"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Phone     string `json:"phone" validate:"omitempty,max=40"`

	// ID is assigned by the pipeline when empty.
	ID string `json:"-"`
	// Source records how the narrative arrived: text, file or audio.
	Source string `json:"-"`
}

// ResumeDocument is the generated resume for a submission.
type ResumeDocument struct {
	Body      string    `json:"body"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewValidator returns a validator with the pipeline's custom rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", notBlank)
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Normalize trims surrounding whitespace from the contact fields.
func (s Submission) Normalize() Submission {
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
	return s
}

// Validate checks s and returns the first problem as an errs.ValidationError. An email that
// passes the address rule but cannot form a storage key is rejected here, before generation.
func (s Submission) Validate(v *validator.Validate) error {
	err := v.Struct(s)
	if err == nil {
		return resumestore.CheckEmail(s.Email)
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errs.Invalid("submission", err.Error())
	}
	return errs.Invalid(strings.ToLower(verrs[0].Field()), describeRule(verrs[0]))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed rule " + fe.Tag()
	}
}
