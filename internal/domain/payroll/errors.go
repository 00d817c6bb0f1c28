package payroll

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("payroll record not found")
	ErrInvalidTransition = errors.New("payment status transition not allowed")
	ErrTenantRequired    = errors.New("tenant id is required")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries field issues and matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + e.Fields[0].Field + " " + e.Fields[0].Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
