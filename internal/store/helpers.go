package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tripmate-app/tripmate/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalPayload serializes a domain record for its JSON payload column.
func marshalPayload(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload failed: %w", err)
	}
	return string(b), nil
}

// scanConversationState scans a ConversationState from a single sql.Row.
func scanConversationState(row *sql.Row) (*models.ConversationState, error) {
	var st models.ConversationState
	var data sql.NullString
	err := row.Scan(&st.UserID, &st.State, &data, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if data.Valid {
		st.Data = json.RawMessage(data.String)
	}
	return &st, nil
}

// scanItineraries decodes itinerary payload rows.
func scanItineraries(rows *sql.Rows) ([]models.Itinerary, error) {
	var out []models.Itinerary
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan itinerary failed: %w", err)
		}
		it, err := unmarshalItinerary(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func unmarshalItinerary(payload string) (*models.Itinerary, error) {
	var it models.Itinerary
	if err := json.Unmarshal([]byte(payload), &it); err != nil {
		return nil, fmt.Errorf("unmarshal itinerary failed: %w", err)
	}
	return &it, nil
}

// scanContacts decodes contact payload rows.
func scanContacts(rows *sql.Rows) ([]models.Contact, error) {
	var out []models.Contact
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan contact failed: %w", err)
		}
		c, err := unmarshalContact(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func unmarshalContact(payload string) (*models.Contact, error) {
	var c models.Contact
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("unmarshal contact failed: %w", err)
	}
	return &c, nil
}

// scanTags reads tag rows.
func scanTags(rows *sql.Rows) ([]models.Tag, error) {
	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag failed: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
