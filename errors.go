package loandash

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the backend rejects, or would reject, the
// bearer token. It is always resolved by clearing the session.
var ErrUnauthorized = errors.New("unauthorized")

// FallbackUploadMessage is the message of a ValidationError when the backend
// did not explain the rejection.
const FallbackUploadMessage = "Upload failed"

// ValidationError is a rejected upload. Message is shown verbatim to the user.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ServerError is a non-2xx, non-401 response, or a response body that could
// not be decoded.
type ServerError struct {
	Operation string
	Status    int
	Err       error // optional cause, like a decoding error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: server responded %d: %v", e.Operation, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: server responded %d", e.Operation, e.Status)
}

func (e *ServerError) Unwrap() error { return e.Err }

// NetworkError is a request that could not complete.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a ServerError or a NetworkError, the two
// failures that keep the previous data on screen.
func IsTransient(err error) bool {
	var s *ServerError
	var n *NetworkError
	return errors.As(err, &s) || errors.As(err, &n)
}
