package auth

import (
	"errors"
	"fmt"
)

// Reasons an access token could not be acquired
const (
	ReasonRejected    = "rejected"
	ReasonUnreachable = "unreachable"
	ReasonMalformed   = "malformed"
)

// ErrAuth matches any *AuthError via errors.Is
var ErrAuth = errors.New("authentication failed")

// AuthError indicates the token endpoint did not hand out a usable token
type AuthError struct {
	Reason     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *AuthError) Error() string {
	msg := "authentication failed: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }
