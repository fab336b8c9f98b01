// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tabsplit/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned (wrapped) when a write violates a uniqueness
	// constraint, e.g. a join code already in use.
	ErrConflict = errors.New("conflict")
)

// Store defines the interface for session storage operations.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	// CreateSession persists a new session together with its participants
	// in one transaction.
	CreateSession(ctx context.Context, state *models.SessionState) error

	// GetSession retrieves a session by its ID.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// GetSessionByCode retrieves a session by its join code.
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)

	// LoadState retrieves a session with all participants, items (ordered by
	// order_index) and assignments.
	LoadState(ctx context.Context, sessionID string) (*models.SessionState, error)

	// Apply executes changes in order, in a single transaction.
	Apply(ctx context.Context, changes []models.Change) error

	// Close releases any resources held by the store.
	Close() error
}
