package analysis

import (
	"errors"
	"fmt"
)

// Sentinel kinds for analysis errors.
var (
	ErrTransport       = errors.New("analysis request failed")
	ErrStatus          = errors.New("analysis service returned an error")
	ErrMalformedResult = errors.New("analysis result is malformed")
)

// StatusError is a non-2xx answer. Detail is the best diagnostic the service gave.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error { return ErrStatus }
