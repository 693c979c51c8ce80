package session

import (
	"context"
	"errors"
)

// Storage sentinel errors. Implementations map their native not-found
// conditions onto these so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a session is not in the store.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when creating a session whose ID is taken.
	ErrAlreadyExists = errors.New("session already exists")
)

// Store defines the interface for durable session storage.
// This interface is storage-only - no lifecycle methods.
// Reaping logic lives in the Reaper component.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// Update persists the mutable fields of a session as a single-row write.
	Update(ctx context.Context, sess *Session) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// List returns all sessions (for reaper iteration).
	List(ctx context.Context) ([]*Session, error)
}
