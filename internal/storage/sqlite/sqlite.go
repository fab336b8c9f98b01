// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session and its participants.
func (s *SQLiteStore) CreateSession(ctx context.Context, state *models.SessionState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSession(ctx, tx, &state.Session); err != nil {
		return err
	}
	for i := range state.Participants {
		if err := insertParticipant(ctx, tx, &state.Participants[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const sessionColumns = "id, code, tip_percentage, tax_amount, owner_id, created_at"

func scanSession(row *sql.Row) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(&session.ID, &session.Code, &session.TipPercentage, &session.TaxAmount, &session.OwnerID, &session.CreatedAt)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetSessionByCode retrieves a session by its join code.
func (s *SQLiteStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session code %s: %w", code, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}
	return session, nil
}

// LoadState retrieves a session with its participants, items and
// assignments. Rows come back in insertion order; items by order_index.
func (s *SQLiteStore) LoadState(ctx context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := &models.SessionState{Session: *session}

	// Get participants
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, name, color, is_owner, joined_at FROM participants WHERE session_id = ? ORDER BY joined_at, rowid",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Color, &p.IsOwner, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		state.Participants = append(state.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	// Get items
	itemRows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, name, quantity, unit_price, total_price, order_index,
		        is_shared, manually_added, ocr_confidence, created_at
		   FROM items WHERE session_id = ? ORDER BY order_index, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item models.Item
		var confidence sql.NullFloat64
		if err := itemRows.Scan(&item.ID, &item.SessionID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.TotalPrice, &item.OrderIndex,
			&item.IsShared, &item.ManuallyAdded, &confidence, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if confidence.Valid {
			c := confidence.Float64
			item.OCRConfidence = &c
		}
		state.Items = append(state.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	// Get assignments
	assignRows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.item_id, a.participant_id, a.share_fraction
		   FROM assignments a JOIN items i ON i.id = a.item_id
		  WHERE i.session_id = ? ORDER BY a.rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer assignRows.Close()
	for assignRows.Next() {
		var a models.Assignment
		if err := assignRows.Scan(&a.ID, &a.ItemID, &a.ParticipantID, &a.ShareFraction); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		state.Assignments = append(state.Assignments, a)
	}
	if err := assignRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}

	return state, nil
}

// classify maps driver errors onto storage sentinels.
func classify(op string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(se.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("failed to %s: %w: %v", op, storage.ErrConflict, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
