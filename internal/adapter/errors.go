package adapter

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is the sentinel behind 404 responses.
	ErrNotFound = errors.New("remote object not found")

	// ErrInvalidQuery is returned when caller input cannot be placed in a query safely.
	ErrInvalidQuery = errors.New("invalid query input")
)

// RemoteAPIError carries the provider's status and message verbatim.
type RemoteAPIError struct {
	Status  int
	Message string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote api: HTTP %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *RemoteAPIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
