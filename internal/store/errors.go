package store

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers that must
// not disclose why an API key failed to authenticate are responsible for
// collapsing this into their own generic error.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state, such
// as booking over an occupied calendar slot.
var ErrConflict = errors.New("conflict")
