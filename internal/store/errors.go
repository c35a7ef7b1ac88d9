package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err is the not-found outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
