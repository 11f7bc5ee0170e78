package backend

import "errors"

var (
	// ErrUnauthenticated means no valid session accompanied the call.
	ErrUnauthenticated = errors.New("backend: not authenticated")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("backend: not found")

	// ErrRejected means the backend refused the request, typically
	// with a message. Wrap it so the message survives errors.Is.
	ErrRejected = errors.New("backend: request rejected")

	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("backend: unavailable")
)
