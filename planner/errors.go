package planner

import (
	"errors"
	"fmt"

	"itinera/metrics"
	"itinera/schedule"
	"itinera/store"
)

const (
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeValidation = "VALIDATION"
	CodeForbidden  = "FORBIDDEN"
)

// Error is returned for every rejected mutation. Conflict is set when the
// rejection points at an existing item or another request in the batch.
type Error struct {
	Code     string             `json:"code"`
	Message  string             `json:"error"`
	Conflict *schedule.Conflict `json:"conflict,omitempty"`
	Err      error              `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Conflict != nil {
		return e.Conflict
	}
	return nil
}

func notFound(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Err: store.ErrNotFound}
}

func invalid(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...interface{}) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func conflict(c *schedule.Conflict) *Error {
	return &Error{Code: CodeConflict, Message: c.Error(), Conflict: c}
}

func staleVersion(itineraryID string, err error) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: fmt.Sprintf("itinerary %s was modified by another request, reload and retry", itineraryID),
		Err:     err,
	}
}

// CodeOf returns the Error code carried by err, or "" for unexpected errors.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return metrics.OutcomeNotFound
	case CodeConflict:
		return metrics.OutcomeConflict
	case CodeValidation, CodeForbidden:
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
