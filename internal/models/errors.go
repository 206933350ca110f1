package models

import "errors"

// Lifecycle errors. Services return these (possibly wrapped) and handlers
// map them onto HTTP statuses with errors.Is.
var (
	// ErrInvalidTransition rejects a status change the lifecycle graph
	// does not allow from the ride's current status.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrUnauthorized rejects an operation the caller's role or identity
	// does not permit on this ride.
	ErrUnauthorized = errors.New("not authorized for this ride")

	// ErrUnapprovedDriver rejects assignment by a driver whose account has
	// not been approved.
	ErrUnapprovedDriver = errors.New("driver is not approved")

	// ErrAlreadyRated rejects a second rating on a ride.
	ErrAlreadyRated = errors.New("ride already rated")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a conditional write lost a race: the record exists
	// but no longer matches the expected state. Callers may re-read and
	// retry.
	ErrConflict = errors.New("concurrent modification conflict")
)
