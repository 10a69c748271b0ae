// Package store provides storage backends for Tripmate.
//
// It persists conversation states and the itinerary/contact/tag domain
// records. Backends: in-memory (tests), SQLite (default), and PostgreSQL.
// All reads and writes are scoped by user id; the store never queries
// across users.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/tripmate-app/tripmate/internal/models"
)

// Store defines the persistence surface used by the conversation engine.
//
// Conversation-state writes are full overwrites with upsert semantics.
// A miss on any Get returns (nil, nil), never an error.
type Store interface {
	GetConversationState(userID string) (*models.ConversationState, error)
	SaveConversationState(state models.ConversationState) error
	DeleteConversationState(userID string) error

	ListItineraries(userID string) ([]models.Itinerary, error)
	GetItinerary(userID, id string) (*models.Itinerary, error)
	SaveItinerary(it models.Itinerary) error

	ListContacts(userID string) ([]models.Contact, error)
	GetContact(userID, id string) (*models.Contact, error)
	SaveContact(c models.Contact) error

	ListTags(userID string) ([]models.Tag, error)
	SaveTag(t models.Tag) error

	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Anything that is
// not recognizably a PostgreSQL connection string is treated as a SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and local development.
type InMemoryStore struct {
	mu          sync.RWMutex
	states      map[string]models.ConversationState
	itineraries map[string]map[string]models.Itinerary // userID -> id -> record
	contacts    map[string]map[string]models.Contact
	tags        map[string]map[string]models.Tag
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:      make(map[string]models.ConversationState),
		itineraries: make(map[string]map[string]models.Itinerary),
		contacts:    make(map[string]map[string]models.Contact),
		tags:        make(map[string]map[string]models.Tag),
	}
}

// GetConversationState retrieves the persisted state for a user, nil on miss.
func (s *InMemoryStore) GetConversationState(userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// SaveConversationState stores or overwrites the state for a user.
func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	return nil
}

// DeleteConversationState removes the state record for a user.
func (s *InMemoryStore) DeleteConversationState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// ListItineraries returns all itineraries owned by a user, oldest first.
func (s *InMemoryStore) ListItineraries(userID string) ([]models.Itinerary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Itinerary
	for _, it := range s.itineraries[userID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetItinerary returns one itinerary by id, nil on miss.
func (s *InMemoryStore) GetItinerary(userID, id string) (*models.Itinerary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.itineraries[userID][id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

// SaveItinerary stores or overwrites an itinerary.
func (s *InMemoryStore) SaveItinerary(it models.Itinerary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itineraries[it.UserID] == nil {
		s.itineraries[it.UserID] = make(map[string]models.Itinerary)
	}
	s.itineraries[it.UserID][it.ID] = it
	return nil
}

// ListContacts returns all contacts owned by a user, oldest first.
func (s *InMemoryStore) ListContacts(userID string) ([]models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Contact
	for _, c := range s.contacts[userID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetContact returns one contact by id, nil on miss.
func (s *InMemoryStore) GetContact(userID, id string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[userID][id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SaveContact stores or overwrites a contact.
func (s *InMemoryStore) SaveContact(c models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contacts[c.UserID] == nil {
		s.contacts[c.UserID] = make(map[string]models.Contact)
	}
	s.contacts[c.UserID][c.ID] = c
	return nil
}

// ListTags returns the user's tag catalogue sorted by name.
func (s *InMemoryStore) ListTags(userID string) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Tag
	for _, t := range s.tags[userID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveTag stores or overwrites a tag catalogue entry.
func (s *InMemoryStore) SaveTag(t models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[t.UserID] == nil {
		s.tags[t.UserID] = make(map[string]models.Tag)
	}
	s.tags[t.UserID][t.ID] = t
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
