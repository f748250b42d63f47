package models

import (
	"errors"
	"fmt"
)

// ErrIdentityNotFound is returned by directory lookups when a Ref does not
// resolve to an existing account. Stale refs are expected (deleted
// accounts), callers decide whether that is fatal.
var ErrIdentityNotFound = errors.New("identity not found")

// ValidationError marks a malformed send intent. Always surfaced to the
// sender, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid send intent: " + e.Reason
}

// PersistenceError marks a storage-layer failure. The send must fail loudly
// so the sender never believes a dropped message was delivered.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IdentityResolutionError marks a directory lookup failure that is not a
// plain not-found, e.g. the directory database being unreachable.
type IdentityResolutionError struct {
	Ref Ref
	Err error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Ref.Key(), e.Err)
}

func (e *IdentityResolutionError) Unwrap() error { return e.Err }

// DeliveryError marks a failed push to one live session. Logged and
// absorbed: persistence already succeeded, the pull path will catch up.
type DeliveryError struct {
	SessionID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push to session %s failed: %v", e.SessionID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
