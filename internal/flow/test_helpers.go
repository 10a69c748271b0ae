package flow

import (
	"github.com/tripmate-app/tripmate/internal/store"
)

// NewTestStateManager returns a state manager over a fresh in-memory store,
// plus the store itself for seeding fixtures. Test helper.
func NewTestStateManager() (*StoreBasedStateManager, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return NewStoreBasedStateManager(st), st
}
