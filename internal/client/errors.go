package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidURL indicates an endpoint or image URL could not be built
var ErrInvalidURL = errors.New("invalid url")

// TransportError indicates a request that did not produce a usable response:
// a non-2xx status, an unreachable host or a cancelled request
type TransportError struct {
	Method     string
	URL        string
	StatusCode int           // 0 when no response was received
	RetryAfter time.Duration // set on 429 when the server sent Retry-After
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodingError indicates a response body that does not match the expected schema
type DecodingError struct {
	Target string
	Err    error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Target, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}
