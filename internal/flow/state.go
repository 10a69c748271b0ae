// Package flow implements the conversational state machines behind the
// Tripmate bot: the persisted per-user conversation state, the generic
// field-collection wizard, and the itinerary, event, contact, and
// forward-to-contact flows built on it.
package flow

import (
	"context"

	"github.com/tripmate-app/tripmate/internal/models"
)

// State name prefixes. Free-text routing in the dispatcher resolves the
// owning flow by prefix, so every state of a flow shares its prefix.
const (
	PrefixItinerary = "itin_"
	PrefixEvent     = "event_"
	PrefixContact   = "contact_"
	PrefixForward   = "fwd_"
)

// Itinerary flow states.
const (
	StateItinTitle     = "itin_title"
	StateItinLocation  = "itin_location"
	StateItinStartDate = "itin_start_date"
	StateItinEndDate   = "itin_end_date"
	StateItinConfirm   = "itin_confirm"
)

// Event flow states.
const (
	StateEventSelectItinerary = "event_select_itinerary"
	StateEventMode            = "event_mode"
	StateEventTitle           = "event_title"
	StateEventDate            = "event_date"
	StateEventStartTime       = "event_start_time"
	StateEventEndTime         = "event_end_time"
	StateEventLocation        = "event_location"
	StateEventNotes           = "event_notes"
	StateEventConfirm         = "event_confirm"
	// StateEventLumaInput persists across repeated link pastes; the user may
	// submit several batches in one sitting.
	StateEventLumaInput = "event_luma_input"
)

// Contact flow states.
const (
	StateContactSelectItinerary = "contact_select_itinerary"
	StateContactSelectEvent     = "contact_select_event"
	StateContactFirstName       = "contact_first_name"
	StateContactLastName        = "contact_last_name"
	StateContactHandle          = "contact_handle"
	StateContactCompany         = "contact_company"
	StateContactEmail           = "contact_email"
	StateContactNote            = "contact_note"
	StateContactTags            = "contact_tags"
	StateContactConfirm         = "contact_confirm"
)

// Forward-to-contact flow states.
const (
	StateForwardContactChoice = "fwd_contact_choice"
	StateForwardNote          = "fwd_note"
	StateForwardEventConfirm  = "fwd_event_confirm"
	StateForwardEventPick     = "fwd_event_pick"
)

// StateManager owns the one persisted conversation record per user.
//
// Get never errors on a miss: an absent record reads as {idle, nil}. Set is
// a full overwrite with upsert semantics. The manager performs no locking;
// it relies on the dispatcher serializing updates per user
// (single-writer-per-key precondition).
type StateManager interface {
	// Get retrieves the user's conversation state, idle when absent.
	Get(ctx context.Context, userID string) (*models.ConversationState, error)

	// Set overwrites the user's state name and draft (marshaled to JSON).
	Set(ctx context.Context, userID, state string, draft interface{}) error

	// Clear resets the user to {idle, nil}.
	Clear(ctx context.Context, userID string) error
}
