package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about rows, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyUsed: unique key already taken (membership pair, manager role)
// - ErrLimitReached: conditional increment refused because a limit was hit
// - ErrInvalidState: row exists but is not in the state the update required
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrLimitReached = errors.New("limit reached")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
