package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// StepError decorates an error with the step the caller should resubmit.
// The server holds no session state between signup requests, so this hint is
// the client's only recovery mechanism.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string { return e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// StepErr wraps err with a resume-step hint.
func StepErr(step int, err error) error {
	return &StepError{Step: step, Err: err}
}

// ResumeStep extracts the resume-step hint from err, or 0 when it carries none.
func ResumeStep(err error) int {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return 0
}
