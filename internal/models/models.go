// Package models defines the core data structures for Tripmate.
//
// It includes the itinerary/contact/tag domain records shared across modules
// and the JSON envelope returned by the HTTP API.
package models

import (
	"errors"
	"time"
)

// Validation constants enforced before any domain record is persisted.
const (
	// MaxTitleLength defines the maximum allowed length for itinerary and event titles.
	MaxTitleLength = 200
	// MaxLocationLength defines the maximum allowed length for location strings.
	MaxLocationLength = 500
	// MaxTripDays defines the maximum allowed span of an itinerary in days.
	MaxTripDays = 365
	// MaxEventsPerItinerary caps the total events across all days of one itinerary.
	MaxEventsPerItinerary = 20
	// MaxItinerariesPerUser caps the number of itineraries a single user may own.
	MaxItinerariesPerUser = 10
	// MaxNotesPerContact caps the notes attached to one contact.
	MaxNotesPerContact = 10
	// MaxTagsPerContact caps tag membership for one contact.
	MaxTagsPerContact = 3
	// MaxTagsPerUser caps the user-scoped tag catalogue.
	MaxTagsPerUser = 10
)

// DateLayout is the wire format for calendar dates ("2025-03-15").
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for event start/end times ("18:30").
const TimeLayout = "15:04"

// Error variables for better error handling and testability.
var (
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrTitleTooLong      = errors.New("title exceeds maximum length")
	ErrEmptyLocation     = errors.New("location cannot be empty")
	ErrLocationTooLong   = errors.New("location exceeds maximum length")
	ErrInvalidDate       = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidTime       = errors.New("time must be in HH:MM format")
	ErrEndBeforeStart    = errors.New("end date cannot be before start date")
	ErrTripTooLong       = errors.New("trip span exceeds maximum days")
	ErrDateOutsideTrip   = errors.New("date falls outside the trip dates")
	ErrEventLimitReached = errors.New("itinerary event limit reached")
)

// Event is one scheduled entry in an itinerary day.
type Event struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StartTime  string `json:"start_time"`         // HH:MM, local to the trip
	EndTime    string `json:"end_time,omitempty"` // HH:MM
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`
	SourceURL  string `json:"source_url,omitempty"` // set for imported events, used for dedup
	ImportedAt string `json:"imported_at,omitempty"`
}

// Day groups the events of one calendar date inside an itinerary.
type Day struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Events []Event `json:"events"`
}

// Itinerary is a multi-day trip owned by one user.
type Itinerary struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	StartDate string    `json:"start_date"` // YYYY-MM-DD
	EndDate   string    `json:"end_date"`   // YYYY-MM-DD
	Days      []Day     `json:"days"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventCount returns the total number of events across all days.
func (it *Itinerary) EventCount() int {
	count := 0
	for _, d := range it.Days {
		count += len(d.Events)
	}
	return count
}

// DayByDate returns the day with the given date, or nil when the date
// is not part of the trip.
func (it *Itinerary) DayByDate(date string) *Day {
	for i := range it.Days {
		if it.Days[i].Date == date {
			return &it.Days[i]
		}
	}
	return nil
}

// ContainsDate reports whether date falls inside [StartDate, EndDate] inclusive.
func (it *Itinerary) ContainsDate(date string) bool {
	return date >= it.StartDate && date <= it.EndDate
}

// Contact is an event contact owned by one user, optionally linked to an
// itinerary and an event within it.
type Contact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name,omitempty"`
	Handle      string    `json:"handle,omitempty"` // always stored @-prefixed
	Company     string    `json:"company,omitempty"`
	Email       string    `json:"email,omitempty"`
	Notes       []string  `json:"notes,omitempty"`
	TagIDs      []string  `json:"tag_ids,omitempty"`
	ItineraryID string    `json:"itinerary_id,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName renders the contact's full name, falling back to the handle
// when no name is set.
func (c *Contact) DisplayName() string {
	switch {
	case c.FirstName == "" && c.LastName == "":
		return c.Handle
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Tag is one entry in a user's tag catalogue.
type Tag struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// APIStatus represents the status values returned by the HTTP API.
type APIStatus string

const (
	// APIStatusOK indicates the request was processed.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates the request failed.
	APIStatusError APIStatus = "error"
)

// APIResponse is the JSON envelope for every HTTP API reply.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Ok creates a success response with an optional result payload.
func Ok(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// OkWithMessage creates a success response carrying a message.
func OkWithMessage(message string) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message}
}

// Error creates an error response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
