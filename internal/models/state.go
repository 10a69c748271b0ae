// Package models defines conversation state structures for Tripmate flows.
package models

import (
	"encoding/json"
	"time"
)

// StateIdle is the resting state of a user with no flow in flight.
const StateIdle = "idle"

// ConversationState is the single persisted record per user: the name of the
// state node the user currently occupies and the flow's accumulated draft,
// serialized as JSON. Reset to {idle, nil} on completion, cancellation, or
// error.
//
// Exactly one record is live per user. Writes are full overwrites; the
// dispatcher serializes updates per user, so no record ever has two
// concurrent writers.
type ConversationState struct {
	UserID    string          `json:"user_id"`
	State     string          `json:"state"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FieldSpec defines one step of a field-wizard traversal: the conversation
// state that owns the step, the draft field it fills, the prompt shown to the
// user, and whether the step may be skipped. FieldSpec lists are static and
// flow-owned.
type FieldSpec struct {
	State    string
	Field    string
	Prompt   string
	Required bool
}

// WizardMeta carries the wizard bookkeeping shared by every flow draft.
// EditMode marks a detour: the next captured field returns straight to the
// flow's confirmation step instead of advancing.
type WizardMeta struct {
	EditMode bool `json:"edit_mode,omitempty"`
}

// InEditMode reports whether the draft is in an edit detour.
func (m *WizardMeta) InEditMode() bool { return m.EditMode }

// SetEditMode toggles the edit detour flag.
func (m *WizardMeta) SetEditMode(v bool) { m.EditMode = v }

// ItineraryDraft accumulates the itinerary-creation flow.
type ItineraryDraft struct {
	WizardMeta
	Title     string `json:"title,omitempty"`
	Location  string `json:"location,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Field returns the named wizard field value.
func (d *ItineraryDraft) Field(name string) string {
	switch name {
	case "title":
		return d.Title
	case "location":
		return d.Location
	case "start_date":
		return d.StartDate
	case "end_date":
		return d.EndDate
	}
	return ""
}

// SetField stores a wizard field value; returns false for unknown fields.
func (d *ItineraryDraft) SetField(name, value string) bool {
	switch name {
	case "title":
		d.Title = value
	case "location":
		d.Location = value
	case "start_date":
		d.StartDate = value
	case "end_date":
		d.EndDate = value
	default:
		return false
	}
	return true
}

// EventDraft accumulates the event-creation flow, both manual and import modes.
type EventDraft struct {
	WizardMeta
	ItineraryID string `json:"itinerary_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Date        string `json:"date,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Field returns the named wizard field value.
func (d *EventDraft) Field(name string) string {
	switch name {
	case "title":
		return d.Title
	case "date":
		return d.Date
	case "start_time":
		return d.StartTime
	case "end_time":
		return d.EndTime
	case "location":
		return d.Location
	case "notes":
		return d.Notes
	}
	return ""
}

// SetField stores a wizard field value; returns false for unknown fields.
func (d *EventDraft) SetField(name, value string) bool {
	switch name {
	case "title":
		d.Title = value
	case "date":
		d.Date = value
	case "start_time":
		d.StartTime = value
	case "end_time":
		d.EndTime = value
	case "location":
		d.Location = value
	case "notes":
		d.Notes = value
	default:
		return false
	}
	return true
}

// ContactDraft accumulates the contact-creation flow. A forward-to-contact
// match seeds FirstName/LastName/Handle (and the linked event) before the
// wizard starts.
type ContactDraft struct {
	WizardMeta
	ItineraryID string   `json:"itinerary_id,omitempty"`
	EventID     string   `json:"event_id,omitempty"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Handle      string   `json:"handle,omitempty"`
	Company     string   `json:"company,omitempty"`
	Email       string   `json:"email,omitempty"`
	Note        string   `json:"note,omitempty"`
	TagIDs      []string `json:"tag_ids,omitempty"`
	// TagsOffered marks that the tag-selection step already ran, so leaving
	// the wizard a second time (after an edit) returns to confirmation.
	TagsOffered bool `json:"tags_offered,omitempty"`
}

// Field returns the named wizard field value.
func (d *ContactDraft) Field(name string) string {
	switch name {
	case "first_name":
		return d.FirstName
	case "last_name":
		return d.LastName
	case "handle":
		return d.Handle
	case "company":
		return d.Company
	case "email":
		return d.Email
	case "note":
		return d.Note
	}
	return ""
}

// SetField stores a wizard field value; returns false for unknown fields.
func (d *ContactDraft) SetField(name, value string) bool {
	switch name {
	case "first_name":
		d.FirstName = value
	case "last_name":
		d.LastName = value
	case "handle":
		d.Handle = value
	case "company":
		d.Company = value
	case "email":
		d.Email = value
	case "note":
		d.Note = value
	default:
		return false
	}
	return true
}

// ForwardDraft carries the forward-to-contact flow between its choice states.
type ForwardDraft struct {
	WizardMeta
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	Handle             string `json:"handle,omitempty"`
	ForwardUnix        int64  `json:"forward_unix,omitempty"`
	MatchedContactID   string `json:"matched_contact_id,omitempty"`
	SuggestedItinerary string `json:"suggested_itinerary,omitempty"`
	SuggestedEventID   string `json:"suggested_event_id,omitempty"`
}

// ForwardedSender is the normalized original-sender identity of a forwarded
// message. The transport exposes three shapes (full user, hidden-user display
// name, channel title); all collapse to this.
type ForwardedSender struct {
	FirstName string
	LastName  string
	Handle    string
}

// ImportLocation is the venue portion of an import candidate.
type ImportLocation struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// ImportCandidate is a transient event record extracted from a third-party
// event page, pending validation. Never persisted standalone.
type ImportCandidate struct {
	Title     string         `json:"title"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Location  ImportLocation `json:"location"`
	SourceURL string         `json:"source_url"`
}

// ImportStatus classifies the outcome of one imported URL.
type ImportStatus string

const (
	// ImportAdded means the candidate became an event on a trip day.
	ImportAdded ImportStatus = "added"
	// ImportRejected means the candidate failed validation (with a reason).
	ImportRejected ImportStatus = "rejected"
	// ImportSkipped means the URL was not processed because the event cap was hit.
	ImportSkipped ImportStatus = "skipped"
)

// ImportResult is the per-URL outcome reported back to the user after a batch.
type ImportResult struct {
	URL    string       `json:"url"`
	Status ImportStatus `json:"status"`
	Title  string       `json:"title,omitempty"`
	Reason string       `json:"reason,omitempty"`
}
