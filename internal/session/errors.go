package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound means the token is unknown or its TTL has lapsed.
	// The caller fixes it by logging in again.
	ErrSessionNotFound = errors.New("session not found or expired")

	// ErrStorageUnavailable means the session backend could not be reached.
	ErrStorageUnavailable = errors.New("credential store unavailable")
)

// SessionError reports a missing session for one side of a request.
type SessionError struct {
	Side string // "source", "destination", or "" for single-session calls
	Err  error
}

func (e *SessionError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("session: %v", e.Err)
	}
	return fmt.Sprintf("%s session: %v", e.Side, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
