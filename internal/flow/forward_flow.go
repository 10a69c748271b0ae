package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

// ForwardFlow handles messages forwarded into the chat: it matches the
// original sender against saved contacts, and for unknown senders suggests
// the trip event nearest the forward time before seeding contact creation.
type ForwardFlow struct {
	sm       StateManager
	st       store.Store
	msg      messaging.Service
	contacts *ContactFlow
}

// NewForwardFlow wires the forward flow. It delegates to the contact flow
// when the sender turns out to be a new contact.
func NewForwardFlow(sm StateManager, st store.Store, msg messaging.Service, contacts *ContactFlow) *ForwardFlow {
	return &ForwardFlow{sm: sm, st: st, msg: msg, contacts: contacts}
}

// Start processes one forwarded message. A forward interrupts whatever flow
// the user was in; the dispatcher routes here before any state handling.
func (f *ForwardFlow) Start(ctx context.Context, userID string, sender models.ForwardedSender, forwardedAt time.Time) error {
	if sender.FirstName == "" && sender.Handle == "" {
		return f.msg.SendMessage(ctx, userID, "I couldn't read who sent that message, so I can't look them up.")
	}

	contacts, err := f.st.ListContacts(userID)
	if err != nil {
		slog.Error("ForwardFlow.Start: list contacts failed", "error", err, "userID", userID)
		return f.msg.SendMessage(ctx, userID, "Something went wrong looking up that sender. Please try again.")
	}

	if match := matchContact(contacts, sender); match != nil {
		draft := models.ForwardDraft{
			FirstName:        sender.FirstName,
			LastName:         sender.LastName,
			Handle:           sender.Handle,
			ForwardUnix:      forwardedAt.Unix(),
			MatchedContactID: match.ID,
		}
		if err := f.sm.Set(ctx, userID, StateForwardContactChoice, &draft); err != nil {
			return err
		}
		body := fmt.Sprintf("This looks like %s, who is already in your contacts.", match.DisplayName())
		buttons := [][]messaging.Button{
			{{Label: "📝 Add a note", Data: EncodeCallback(CBForwardAddNote, match.ID)}},
			{{Label: "➕ New contact instead", Data: EncodeCallback(CBForwardNewEntry, "")}},
			{{Label: "Cancel", Data: EncodeCallback(CBCancel, "")}},
		}
		return f.msg.SendMessageWithButtons(ctx, userID, body, buttons)
	}

	return f.suggestEvent(ctx, userID, sender, forwardedAt)
}

// suggestEvent looks for the event closest to the forward time on any trip
// day covering it, then asks whether the new contact was met there.
func (f *ForwardFlow) suggestEvent(ctx context.Context, userID string, sender models.ForwardedSender, forwardedAt time.Time) error {
	itins, err := f.st.ListItineraries(userID)
	if err != nil {
		return err
	}
	day := forwardedAt.Format(models.DateLayout)

	var (
		bestItin  *models.Itinerary
		bestEvent *models.Event
		bestDiff  time.Duration
	)
	for i := range itins {
		it := &itins[i]
		if !it.ContainsDate(day) {
			continue
		}
		if bestItin == nil {
			bestItin = it
		}
		d := it.DayByDate(day)
		if d == nil {
			continue
		}
		for j := range d.Events {
			ev := &d.Events[j]
			start, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, day+" "+ev.StartTime, forwardedAt.Location())
			if err != nil {
				continue
			}
			diff := forwardedAt.Sub(start)
			if diff < 0 {
				diff = -diff
			}
			if bestEvent == nil || diff < bestDiff {
				bestItin, bestEvent, bestDiff = it, ev, diff
			}
		}
	}

	seed := models.ContactDraft{
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		Handle:    sender.Handle,
	}
	if bestItin == nil {
		// No trip covers the forward day; fall back to the normal selectors.
		return f.contacts.StartSeeded(ctx, userID, seed)
	}
	if bestEvent == nil {
		seed.ItineraryID = bestItin.ID
		return f.contacts.StartSeeded(ctx, userID, seed)
	}

	draft := models.ForwardDraft{
		FirstName:          sender.FirstName,
		LastName:           sender.LastName,
		Handle:             sender.Handle,
		ForwardUnix:        forwardedAt.Unix(),
		SuggestedItinerary: bestItin.ID,
		SuggestedEventID:   bestEvent.ID,
	}
	if err := f.sm.Set(ctx, userID, StateForwardEventConfirm, &draft); err != nil {
		return err
	}
	body := fmt.Sprintf("New contact. Did you meet them at %s (%s %s)?", bestEvent.Title, day, bestEvent.StartTime)
	buttons := [][]messaging.Button{
		{{Label: "✅ Yes", Data: EncodeCallback(CBForwardEventYes, "")}},
		{{Label: "Pick another event", Data: EncodeCallback(CBForwardEventPick, "")}},
		{{Label: "No event", Data: EncodeCallback(CBForwardNoEvent, "")}},
	}
	return f.msg.SendMessageWithButtons(ctx, userID, body, buttons)
}

// HandleAddNote asks for a note to append to the matched contact.
func (f *ForwardFlow) HandleAddNote(ctx context.Context, userID, contactID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	draft.MatchedContactID = contactID
	if err := f.sm.Set(ctx, userID, StateForwardNote, draft); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, userID, "📝 What's the note?")
}

// HandleNewEntry abandons the match and creates a fresh contact seeded with
// the forwarded sender's identity.
func (f *ForwardFlow) HandleNewEntry(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.contacts.StartSeeded(ctx, userID, models.ContactDraft{
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Handle:    draft.Handle,
	})
}

// HandleText appends the typed note to the matched contact.
func (f *ForwardFlow) HandleText(ctx context.Context, userID string, st *models.ConversationState, text string) error {
	if st.State != StateForwardNote {
		return f.msg.SendMessage(ctx, userID, "Use the buttons above, or /cancel to start over.")
	}
	var draft models.ForwardDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}
	note := strings.TrimSpace(text)
	if note == "" {
		return f.msg.SendMessage(ctx, userID, "📝 What's the note?")
	}

	c, err := f.st.GetContact(userID, draft.MatchedContactID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if c == nil {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "That contact no longer exists.")
	}
	if len(c.Notes) >= models.MaxNotesPerContact {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, fmt.Sprintf("%s already has %d notes, which is the limit.", c.DisplayName(), models.MaxNotesPerContact))
	}
	c.Notes = append(c.Notes, note)
	c.UpdatedAt = time.Now()
	if err := f.st.SaveContact(*c); err != nil {
		slog.Error("ForwardFlow.HandleText: persist failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if err := f.sm.Clear(ctx, userID); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, userID, fmt.Sprintf("✅ Note added to %s.", c.DisplayName()))
}

// HandleEventYes accepts the suggested event and seeds contact creation.
func (f *ForwardFlow) HandleEventYes(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.contacts.StartSeeded(ctx, userID, models.ContactDraft{
		ItineraryID: draft.SuggestedItinerary,
		EventID:     draft.SuggestedEventID,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		Handle:      draft.Handle,
	})
}

// HandleEventPick lists the forward day's events so the user can choose one.
func (f *ForwardFlow) HandleEventPick(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	it, err := f.st.GetItinerary(userID, draft.SuggestedItinerary)
	if err != nil || it == nil {
		return f.fail(ctx, userID)
	}
	day := time.Unix(draft.ForwardUnix, 0).Format(models.DateLayout)
	d := it.DayByDate(day)
	if d == nil || len(d.Events) == 0 {
		return f.HandleNoEvent(ctx, userID)
	}
	if err := f.sm.Set(ctx, userID, StateForwardEventPick, draft); err != nil {
		return err
	}
	var rows [][]messaging.Button
	for _, ev := range d.Events {
		rows = append(rows, []messaging.Button{{
			Label: fmt.Sprintf("%s (%s)", ev.Title, ev.StartTime),
			Data:  EncodeCallback(CBForwardEventSel, ev.ID),
		}})
	}
	rows = append(rows, []messaging.Button{{Label: "No event", Data: EncodeCallback(CBForwardNoEvent, "")}})
	return f.msg.SendMessageWithButtons(ctx, userID, "Which event?", rows)
}

// HandleEventSelected links the chosen event and seeds contact creation.
func (f *ForwardFlow) HandleEventSelected(ctx context.Context, userID, eventID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.contacts.StartSeeded(ctx, userID, models.ContactDraft{
		ItineraryID: draft.SuggestedItinerary,
		EventID:     eventID,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		Handle:      draft.Handle,
	})
}

// HandleNoEvent seeds contact creation linked to the trip only.
func (f *ForwardFlow) HandleNoEvent(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.contacts.StartSeeded(ctx, userID, models.ContactDraft{
		ItineraryID: draft.SuggestedItinerary,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		Handle:      draft.Handle,
	})
}

func (f *ForwardFlow) loadDraft(ctx context.Context, userID string) (*models.ForwardDraft, error) {
	st, err := f.sm.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var draft models.ForwardDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (f *ForwardFlow) fail(ctx context.Context, userID string) error {
	_ = f.sm.Clear(ctx, userID)
	return f.msg.SendMessage(ctx, userID, "Something went wrong; nothing was saved. Please try again.")
}

// matchContact finds a saved contact for the forwarded sender: handle match
// first (ignoring case and any leading @), then exact case-insensitive
// first+last name.
func matchContact(contacts []models.Contact, sender models.ForwardedSender) *models.Contact {
	if h := strings.TrimPrefix(strings.TrimSpace(sender.Handle), "@"); h != "" {
		for i := range contacts {
			ch := strings.TrimPrefix(contacts[i].Handle, "@")
			if ch != "" && strings.EqualFold(ch, h) {
				return &contacts[i]
			}
		}
	}
	if sender.FirstName == "" {
		return nil
	}
	for i := range contacts {
		if strings.EqualFold(contacts[i].FirstName, sender.FirstName) &&
			strings.EqualFold(contacts[i].LastName, sender.LastName) {
			return &contacts[i]
		}
	}
	return nil
}
