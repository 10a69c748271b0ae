// Package store provides storage backends for Tripmate.
//
// This file implements the SQLite-backed store, the default backend.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tripmate-app/tripmate/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore migrations applied")

	return &SQLiteStore{db: db}, nil
}

// GetConversationState retrieves the persisted state for a user, nil on miss.
func (s *SQLiteStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, state, data, created_at, updated_at
			  FROM conversation_states WHERE user_id = ?`
	st, err := scanConversationState(s.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	return st, nil
}

// SaveConversationState stores or overwrites the state record for a user.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	query := `INSERT OR REPLACE INTO conversation_states (user_id, state, data, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, state.UserID, state.State, nilIfEmpty(string(state.Data)),
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "userID", state.UserID, "state", state.State)
		return err
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "userID", state.UserID, "state", state.State)
	return nil
}

// DeleteConversationState removes the state record for a user.
func (s *SQLiteStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// ListItineraries returns all itineraries owned by a user, oldest first.
func (s *SQLiteStore) ListItineraries(userID string) ([]models.Itinerary, error) {
	rows, err := s.db.Query(`SELECT payload FROM itineraries WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListItineraries query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query itineraries: %w", err)
	}
	defer rows.Close()
	return scanItineraries(rows)
}

// GetItinerary returns one itinerary by id, nil on miss.
func (s *SQLiteStore) GetItinerary(userID, id string) (*models.Itinerary, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM itineraries WHERE user_id = ? AND id = ?`, userID, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetItinerary failed", "error", err, "userID", userID, "id", id)
		return nil, err
	}
	return unmarshalItinerary(payload)
}

// SaveItinerary stores or overwrites an itinerary as a single JSON payload.
func (s *SQLiteStore) SaveItinerary(it models.Itinerary) error {
	payload, err := marshalPayload(it)
	if err != nil {
		slog.Error("SQLiteStore SaveItinerary marshal failed", "error", err, "id", it.ID)
		return err
	}
	query := `INSERT OR REPLACE INTO itineraries (user_id, id, payload, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, it.UserID, it.ID, payload, it.CreatedAt, it.UpdatedAt); err != nil {
		slog.Error("SQLiteStore SaveItinerary failed", "error", err, "userID", it.UserID, "id", it.ID)
		return err
	}
	slog.Debug("SQLiteStore SaveItinerary succeeded", "userID", it.UserID, "id", it.ID)
	return nil
}

// ListContacts returns all contacts owned by a user, oldest first.
func (s *SQLiteStore) ListContacts(userID string) ([]models.Contact, error) {
	rows, err := s.db.Query(`SELECT payload FROM contacts WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListContacts query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

// GetContact returns one contact by id, nil on miss.
func (s *SQLiteStore) GetContact(userID, id string) (*models.Contact, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM contacts WHERE user_id = ? AND id = ?`, userID, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetContact failed", "error", err, "userID", userID, "id", id)
		return nil, err
	}
	return unmarshalContact(payload)
}

// SaveContact stores or overwrites a contact as a single JSON payload.
func (s *SQLiteStore) SaveContact(c models.Contact) error {
	payload, err := marshalPayload(c)
	if err != nil {
		slog.Error("SQLiteStore SaveContact marshal failed", "error", err, "id", c.ID)
		return err
	}
	query := `INSERT OR REPLACE INTO contacts (user_id, id, payload, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, c.UserID, c.ID, payload, c.CreatedAt, c.UpdatedAt); err != nil {
		slog.Error("SQLiteStore SaveContact failed", "error", err, "userID", c.UserID, "id", c.ID)
		return err
	}
	slog.Debug("SQLiteStore SaveContact succeeded", "userID", c.UserID, "id", c.ID)
	return nil
}

// ListTags returns the user's tag catalogue sorted by name.
func (s *SQLiteStore) ListTags(userID string) ([]models.Tag, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name FROM tags WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListTags query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// SaveTag stores or overwrites a tag catalogue entry.
func (s *SQLiteStore) SaveTag(t models.Tag) error {
	query := `INSERT OR REPLACE INTO tags (user_id, id, name) VALUES (?, ?, ?)`
	if _, err := s.db.Exec(query, t.UserID, t.ID, t.Name); err != nil {
		slog.Error("SQLiteStore SaveTag failed", "error", err, "userID", t.UserID, "id", t.ID)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
