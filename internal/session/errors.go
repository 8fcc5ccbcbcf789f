package session

import "errors"

// Reasons passed to the publish-dropped callback.
var (
	// ErrNotOpen means the session was not Open when publish was called.
	ErrNotOpen = errors.New("session: not open")

	// ErrNeverOpened means Open has not been called yet.
	ErrNeverOpened = errors.New("session: never opened")
)
