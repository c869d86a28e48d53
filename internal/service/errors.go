package service

import (
	"errors"
	"fmt"

	"iotkit-lending-backend/internal/repository"
)

var (
	ErrNotFound          = repository.ErrNotFound
	ErrConflict          = repository.ErrConflict
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ErrorKind classifies a failure so callers can decide between refusing,
// retrying and merely warning.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindDependency   ErrorKind = "dependency"
	KindNotification ErrorKind = "notification"
)

// KindOf maps an error onto its kind. Unknown errors are dependency failures.
func KindOf(err error) ErrorKind {
	var stepErr *StepError
	switch {
	case errors.As(err, &stepErr):
		return stepErr.Kind
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindDependency
	}
}

// StepError reports which return pipeline step failed. Amount and RequestID
// are carried so an operator can retry by hand.
type StepError struct {
	Step      string
	Kind      ErrorKind
	RequestID int32
	Amount    int64
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("return of request %d failed at %s (%s, amount %d): %v", e.RequestID, e.Step, e.Kind, e.Amount, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PartialDetailsError means the store acknowledged fewer penalty details than were sent.
type PartialDetailsError struct {
	PenaltyID int32
	Expected  int
	Created   int
}

func (e *PartialDetailsError) Error() string {
	return fmt.Sprintf("penalty %d: only %d of %d details were created", e.PenaltyID, e.Created, e.Expected)
}
