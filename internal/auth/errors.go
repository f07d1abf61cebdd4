package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCode means the callback URL carried no authorization code.
	ErrMissingCode = errors.New("authorization response has no code")

	// ErrUnknownKey means the token names a signing key Google does not publish.
	ErrUnknownKey = errors.New("unknown signing key")
)

// VerificationError reports an identity token that failed verification
// after any clock-skew retries.
type VerificationError struct {
	Attempts int
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("identity verification failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ConsentError is the provider's own error from the authorization redirect,
// e.g. access_denied.
type ConsentError struct {
	Code        string
	Description string
}

func (e *ConsentError) Error() string {
	if e.Description == "" {
		return "authorization denied: " + e.Code
	}
	return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
}
