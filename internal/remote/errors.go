// ABOUTME: Remote call error taxonomy: transport failures, non-2xx responses and lost auth.
// ABOUTME: Network errors are never fatal; callers keep local state and retry later.
package remote

import (
	"errors"
	"fmt"
)

// ErrUnauthorized means the server rejected our credentials and one refresh
// attempt did not help. Credentials have been cleared by the time it is returned.
var ErrUnauthorized = errors.New("session expired, please log in again")

// NetworkError wraps a transport-level failure (DNS, refused, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
