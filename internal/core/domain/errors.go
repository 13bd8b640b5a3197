package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent retrieval failures the caller can act on.
// They are distinct from infrastructure errors, which adapters wrap
// into one of these sentinels before they cross the port boundary.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery indicates malformed caller input, such as a
	// non-positive result limit or an inconsistent filter request.
	// Never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrConfiguration indicates missing or invalid construction-time
	// configuration (credentials, store handles, fusion weights).
	// This is an operator error, surfaced immediately.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrProviderUnavailable indicates the embedding or completion
	// provider failed after retry. Single-path provider failures are
	// absorbed by degradation and never reach the caller directly.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrStoreUnavailable indicates the backing store could not serve
	// either retrieval path. This is a total failure, distinct from
	// an empty result set.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// invalidf builds an ErrInvalidQuery with detail.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
