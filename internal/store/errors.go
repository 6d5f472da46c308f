package store

import "errors"

// Error taxonomy shared by all backends. Callers match with errors.Is;
// backends wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrValidation covers missing required fields and out-of-range values.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateKey is returned when a create would violate the natural-key
	// uniqueness of an entity kind.
	ErrDuplicateKey = errors.New("duplicate natural key")

	// ErrNotFound is returned for lookups and updates on unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrSelfReference is returned when a relationship links an entity to itself.
	ErrSelfReference = errors.New("relationship source equals target")

	// ErrDuplicateRelationship is returned when an edge with the same source,
	// target, and type already exists.
	ErrDuplicateRelationship = errors.New("duplicate relationship")

	// ErrInvalidState is returned for illegal queue status transitions, most
	// commonly a claim on an item that is no longer pending.
	ErrInvalidState = errors.New("invalid queue state transition")
)
