package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the orchestrator is an *Error whose Kind is one of these.
var (
	ErrPrecondition = errors.New("precondition failed")
	ErrStorage      = errors.New("storage failure")
	ErrRecordStore  = errors.New("record store failure")
	ErrAnalysis     = errors.New("analysis failure")
	ErrCancelled    = errors.New("batch cancelled")
)

// Precondition refinements, wrapped inside an ErrPrecondition error.
var (
	ErrServiceUnavailable = errors.New("analysis service is offline")
	ErrInvalidFile        = errors.New("invalid file")
	ErrMissingInput       = errors.New("missing input")
)

// Fixed user-facing messages.
const (
	AnalysisFailedSummary = "Resume analysis failed. Check that the analysis service is running."
	SaveFailedSummary     = "Resume analysis finished but the result could not be saved."
	ReloadFailedSummary   = "Analysis finished but the candidate list could not be loaded."
	msgServiceOffline     = "The resume analysis service is offline. Start it and try again."
	msgStorage            = "The file could not be uploaded."
	msgRecordStore        = "The resume record could not be saved."
	msgCancelled          = "Processing was cancelled before this file started."
	msgInternal           = "Something went wrong while processing the batch."
)

// Error carries the failed operation, the error kind and the underlying cause.
// errors.Is matches both Kind and anything in the Err chain.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// inputError is a precondition failure whose message is safe to show verbatim.
type inputError struct {
	reason error
	msg    string
}

func (e *inputError) Error() string { return e.msg }
func (e *inputError) Unwrap() error { return e.reason }

func rejectInput(reason error, format string, args ...any) *Error {
	return newError("check", ErrPrecondition, &inputError{reason: reason, msg: fmt.Sprintf(format, args...)})
}

// UserMessage maps any error to a short message safe for end users.
// Raw causes are only ever logged.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var in *inputError
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		return msgServiceOffline
	case errors.As(err, &in):
		return in.msg
	case errors.Is(err, ErrAnalysis):
		return AnalysisFailedSummary
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, ErrStorage):
		return msgStorage
	case errors.Is(err, ErrRecordStore):
		return msgRecordStore
	}
	return msgInternal
}
