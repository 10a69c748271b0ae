package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// Get retrieves the conversation state for a user. A miss returns an idle
// state record, never an error.
func (sm *StoreBasedStateManager) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	st, err := sm.store.GetConversationState(userID)
	if err != nil {
		slog.Error("StateManager.Get failed", "error", err, "userID", userID)
		return nil, err
	}
	if st == nil {
		slog.Debug("StateManager.Get miss, returning idle", "userID", userID)
		return &models.ConversationState{UserID: userID, State: models.StateIdle}, nil
	}
	slog.Debug("StateManager.Get found", "userID", userID, "state", st.State)
	return st, nil
}

// Set overwrites the user's conversation state with the given state name and
// draft. The draft is marshaled to JSON; nil stores an empty blob.
func (sm *StoreBasedStateManager) Set(ctx context.Context, userID, state string, draft interface{}) error {
	var data json.RawMessage
	if draft != nil {
		b, err := json.Marshal(draft)
		if err != nil {
			slog.Error("StateManager.Set marshal failed", "error", err, "userID", userID, "state", state)
			return fmt.Errorf("marshal draft failed: %w", err)
		}
		data = b
	}

	now := time.Now()
	createdAt := now
	if existing, err := sm.store.GetConversationState(userID); err == nil && existing != nil {
		createdAt = existing.CreatedAt
	}

	record := models.ConversationState{
		UserID:    userID,
		State:     state,
		Data:      data,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if err := sm.store.SaveConversationState(record); err != nil {
		slog.Error("StateManager.Set save failed", "error", err, "userID", userID, "state", state)
		return err
	}
	slog.Debug("StateManager.Set succeeded", "userID", userID, "state", state)
	return nil
}

// Clear resets the user to the idle state with no draft.
func (sm *StoreBasedStateManager) Clear(ctx context.Context, userID string) error {
	if err := sm.Set(ctx, userID, models.StateIdle, nil); err != nil {
		slog.Error("StateManager.Clear failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("StateManager.Clear succeeded", "userID", userID)
	return nil
}

// DecodeDraft unmarshals a conversation state's data blob into the flow's
// typed draft. An empty blob leaves the draft zero-valued.
func DecodeDraft(st *models.ConversationState, draft interface{}) error {
	if st == nil || len(st.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(st.Data, draft); err != nil {
		return fmt.Errorf("decode draft failed: %w", err)
	}
	return nil
}
