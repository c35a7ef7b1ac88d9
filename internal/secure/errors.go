package secure

import (
	"errors"
	"fmt"
)

// Access failures are deliberately split: reads of rows the principal cannot
// see report not-found, identical to rows that do not exist, so existence is
// never leaked. Writes report denial explicitly.
var (
	ErrNotFound     = errors.New("secure: not found")
	ErrAccessDenied = errors.New("secure: access denied")
	ErrReadOnly     = errors.New("secure: mutation rejected under read-only scope")
	ErrInvalidQuery = errors.New("secure: invalid query")
)

// ConfigurationError reports a broken entity type declaration. It is raised
// at registration time, never at query time.
type ConfigurationError struct {
	Entity string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("secure: entity type %q misconfigured: %s", e.Entity, e.Reason)
}
