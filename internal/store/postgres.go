// Package store provides storage backends for Tripmate.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/tripmate-app/tripmate/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore migrations applied")

	return &PostgresStore{db: db}, nil
}

// GetConversationState retrieves the persisted state for a user, nil on miss.
func (s *PostgresStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, state, data, created_at, updated_at
			  FROM conversation_states WHERE user_id = $1`
	st, err := scanConversationState(s.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	return st, nil
}

// SaveConversationState stores or overwrites the state record for a user.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	query := `INSERT INTO conversation_states (user_id, state, data, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_id) DO UPDATE
			  SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(query, state.UserID, state.State, nilIfEmpty(string(state.Data)),
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "userID", state.UserID, "state", state.State)
		return err
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "userID", state.UserID, "state", state.State)
	return nil
}

// DeleteConversationState removes the state record for a user.
func (s *PostgresStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

// ListItineraries returns all itineraries owned by a user, oldest first.
func (s *PostgresStore) ListItineraries(userID string) ([]models.Itinerary, error) {
	rows, err := s.db.Query(`SELECT payload FROM itineraries WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("PostgresStore ListItineraries query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query itineraries: %w", err)
	}
	defer rows.Close()
	return scanItineraries(rows)
}

// GetItinerary returns one itinerary by id, nil on miss.
func (s *PostgresStore) GetItinerary(userID, id string) (*models.Itinerary, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM itineraries WHERE user_id = $1 AND id = $2`, userID, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetItinerary failed", "error", err, "userID", userID, "id", id)
		return nil, err
	}
	return unmarshalItinerary(payload)
}

// SaveItinerary stores or overwrites an itinerary as a single JSON payload.
func (s *PostgresStore) SaveItinerary(it models.Itinerary) error {
	payload, err := marshalPayload(it)
	if err != nil {
		slog.Error("PostgresStore SaveItinerary marshal failed", "error", err, "id", it.ID)
		return err
	}
	query := `INSERT INTO itineraries (user_id, id, payload, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_id, id) DO UPDATE
			  SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.Exec(query, it.UserID, it.ID, payload, it.CreatedAt, it.UpdatedAt); err != nil {
		slog.Error("PostgresStore SaveItinerary failed", "error", err, "userID", it.UserID, "id", it.ID)
		return err
	}
	slog.Debug("PostgresStore SaveItinerary succeeded", "userID", it.UserID, "id", it.ID)
	return nil
}

// ListContacts returns all contacts owned by a user, oldest first.
func (s *PostgresStore) ListContacts(userID string) ([]models.Contact, error) {
	rows, err := s.db.Query(`SELECT payload FROM contacts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("PostgresStore ListContacts query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

// GetContact returns one contact by id, nil on miss.
func (s *PostgresStore) GetContact(userID, id string) (*models.Contact, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM contacts WHERE user_id = $1 AND id = $2`, userID, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetContact failed", "error", err, "userID", userID, "id", id)
		return nil, err
	}
	return unmarshalContact(payload)
}

// SaveContact stores or overwrites a contact as a single JSON payload.
func (s *PostgresStore) SaveContact(c models.Contact) error {
	payload, err := marshalPayload(c)
	if err != nil {
		slog.Error("PostgresStore SaveContact marshal failed", "error", err, "id", c.ID)
		return err
	}
	query := `INSERT INTO contacts (user_id, id, payload, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_id, id) DO UPDATE
			  SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.Exec(query, c.UserID, c.ID, payload, c.CreatedAt, c.UpdatedAt); err != nil {
		slog.Error("PostgresStore SaveContact failed", "error", err, "userID", c.UserID, "id", c.ID)
		return err
	}
	return nil
}

// ListTags returns the user's tag catalogue sorted by name.
func (s *PostgresStore) ListTags(userID string) ([]models.Tag, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		slog.Error("PostgresStore ListTags query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// SaveTag stores or overwrites a tag catalogue entry.
func (s *PostgresStore) SaveTag(t models.Tag) error {
	query := `INSERT INTO tags (user_id, id, name) VALUES ($1, $2, $3)
			  ON CONFLICT (user_id, id) DO UPDATE SET name = EXCLUDED.name`
	if _, err := s.db.Exec(query, t.UserID, t.ID, t.Name); err != nil {
		slog.Error("PostgresStore SaveTag failed", "error", err, "userID", t.UserID, "id", t.ID)
		return err
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
