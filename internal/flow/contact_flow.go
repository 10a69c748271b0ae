package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

// contactFields is the static wizard traversal for contact creation.
var contactFields = []models.FieldSpec{
	{State: StateContactFirstName, Field: "first_name", Prompt: "👤 First name?", Required: true},
	{State: StateContactLastName, Field: "last_name", Prompt: "👤 Last name?", Required: false},
	{State: StateContactHandle, Field: "handle", Prompt: "💬 Messaging handle? (e.g. @alice)", Required: false},
	{State: StateContactCompany, Field: "company", Prompt: "🏢 Company?", Required: false},
	{State: StateContactEmail, Field: "email", Prompt: "✉️ Email?", Required: false},
	{State: StateContactNote, Field: "note", Prompt: "📝 A note about how you met?", Required: false},
}

// ContactFlow creates event contacts: selectors, field wizard, tag loop,
// confirmation, commit.
type ContactFlow struct {
	sm      StateManager
	st      store.Store
	msg     messaging.Service
	baseURL string
	wizard  *Wizard
}

// NewContactFlow wires the contact flow.
func NewContactFlow(sm StateManager, st store.Store, msg messaging.Service, baseURL string) *ContactFlow {
	f := &ContactFlow{sm: sm, st: st, msg: msg, baseURL: baseURL}
	f.wizard = NewWizard(contactFields, sm, msg, f.validateField, f.showConfirmation)
	return f
}

// Start begins contact creation with the itinerary selector.
func (f *ContactFlow) Start(ctx context.Context, userID string) error {
	return f.StartSeeded(ctx, userID, models.ContactDraft{})
}

// StartSeeded begins contact creation with a pre-populated draft, e.g. from
// a forwarded-message match. A seeded itinerary link skips the selectors;
// seeded name fields are passed over by the wizard.
func (f *ContactFlow) StartSeeded(ctx context.Context, userID string, seed models.ContactDraft) error {
	if seed.ItineraryID != "" {
		return f.wizard.Start(ctx, userID, &seed)
	}
	itins, err := f.st.ListItineraries(userID)
	if err != nil {
		slog.Error("ContactFlow.StartSeeded: list failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if len(itins) == 0 {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "You don't have any trips yet. Create one with /newtrip first.")
	}
	if err := f.sm.Set(ctx, userID, StateContactSelectItinerary, &seed); err != nil {
		return err
	}
	return f.msg.SendMessageWithButtons(ctx, userID, "Which trip did you meet this contact on?", itineraryButtons(itins, CBContactItinerary))
}

// HandleItineraryPicked stores the selected itinerary and offers its events.
func (f *ContactFlow) HandleItineraryPicked(ctx context.Context, userID, itineraryID string) error {
	it, err := f.st.GetItinerary(userID, itineraryID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if it == nil {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "That trip no longer exists. Start again with /newcontact.")
	}

	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	draft.ItineraryID = itineraryID

	rows := eventButtons(it)
	if len(rows) == 0 {
		// No events on the trip; go straight to the wizard.
		return f.wizard.Start(ctx, userID, draft)
	}
	if err := f.sm.Set(ctx, userID, StateContactSelectEvent, draft); err != nil {
		return err
	}
	rows = append(rows, []messaging.Button{
		{Label: "Skip", Data: EncodeCallback(CBContactSkipEvent, "")},
		{Label: "Cancel", Data: EncodeCallback(CBCancel, "")},
	})
	return f.msg.SendMessageWithButtons(ctx, userID, "Which event did you meet them at? (optional)", rows)
}

// HandleEventPicked links the contact to an event and enters the wizard.
func (f *ContactFlow) HandleEventPicked(ctx context.Context, userID, eventID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	draft.EventID = eventID
	return f.wizard.Start(ctx, userID, draft)
}

// HandleEventSkipped enters the wizard with no event link.
func (f *ContactFlow) HandleEventSkipped(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.Start(ctx, userID, draft)
}

// HandleText routes free text for any contact flow state.
func (f *ContactFlow) HandleText(ctx context.Context, userID string, st *models.ConversationState, text string) error {
	var draft models.ContactDraft
	if err := DecodeDraft(st, &draft); err != nil {
		slog.Error("ContactFlow.HandleText: decode failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	switch {
	case f.wizard.Owns(st.State):
		return f.wizard.CaptureText(ctx, userID, st.State, text, &draft)
	case st.State == StateContactTags:
		return f.createTag(ctx, userID, &draft, text)
	case st.State == StateContactConfirm:
		return f.showConfirmation(ctx, userID, &draft)
	default:
		return f.msg.SendMessage(ctx, userID, "Use the buttons above, or /cancel to start over.")
	}
}

// HandleSkip handles the wizard skip button.
func (f *ContactFlow) HandleSkip(ctx context.Context, userID string, st *models.ConversationState) error {
	var draft models.ContactDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.Skip(ctx, userID, st.State, &draft)
}

// HandleTagToggle flips membership of one tag, bounded at three per contact.
func (f *ContactFlow) HandleTagToggle(ctx context.Context, userID, tagID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if i := indexOfString(draft.TagIDs, tagID); i >= 0 {
		draft.TagIDs = append(draft.TagIDs[:i], draft.TagIDs[i+1:]...)
	} else if len(draft.TagIDs) >= models.MaxTagsPerContact {
		return f.msg.SendMessage(ctx, userID, fmt.Sprintf("A contact can have at most %d tags. Deselect one first.", models.MaxTagsPerContact))
	} else {
		draft.TagIDs = append(draft.TagIDs, tagID)
	}
	return f.showTagSelection(ctx, userID, draft)
}

// HandleTagsDone leaves the tag loop for the confirmation screen.
func (f *ContactFlow) HandleTagsDone(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.showConfirmation(ctx, userID, draft)
}

// HandleEdit starts an edit detour for one field (or re-enters the tag loop).
func (f *ContactFlow) HandleEdit(ctx context.Context, userID, field string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if field == "tags" {
		return f.showTagSelection(ctx, userID, draft)
	}
	return f.wizard.EnterField(ctx, userID, field, draft)
}

// HandleSave commits the draft as a new contact.
func (f *ContactFlow) HandleSave(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if draft.FirstName == "" {
		return f.msg.SendMessage(ctx, userID, "⚠️ A first name is required.")
	}

	now := time.Now()
	c := models.Contact{
		ID:          uuid.NewString(),
		UserID:      userID,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		Handle:      draft.Handle,
		Company:     draft.Company,
		Email:       draft.Email,
		TagIDs:      draft.TagIDs,
		ItineraryID: draft.ItineraryID,
		EventID:     draft.EventID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if draft.Note != "" {
		c.Notes = []string{draft.Note}
	}
	if err := f.st.SaveContact(c); err != nil {
		slog.Error("ContactFlow.HandleSave: persist failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if err := f.sm.Clear(ctx, userID); err != nil {
		return err
	}
	slog.Info("ContactFlow: contact created", "userID", userID, "contactID", c.ID)
	return f.msg.SendMessage(ctx, userID,
		fmt.Sprintf("✅ Contact %s saved.\n%s", c.DisplayName(), DeepLink(f.baseURL, "contacts", c.ID)))
}

// createTag adds a new catalogue entry from free text and selects it.
func (f *ContactFlow) createTag(ctx context.Context, userID string, draft *models.ContactDraft, text string) error {
	name := strings.TrimSpace(text)
	if name == "" {
		return f.showTagSelection(ctx, userID, draft)
	}
	tags, err := f.st.ListTags(userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			// Already in the catalogue; just select it.
			if indexOfString(draft.TagIDs, t.ID) < 0 && len(draft.TagIDs) < models.MaxTagsPerContact {
				draft.TagIDs = append(draft.TagIDs, t.ID)
			}
			return f.showTagSelection(ctx, userID, draft)
		}
	}
	if len(tags) >= models.MaxTagsPerUser {
		return f.msg.SendMessage(ctx, userID, fmt.Sprintf("You already have %d tags, which is the limit.", models.MaxTagsPerUser))
	}

	tag := models.Tag{ID: uuid.NewString(), UserID: userID, Name: name}
	if err := f.st.SaveTag(tag); err != nil {
		return f.fail(ctx, userID)
	}
	if len(draft.TagIDs) < models.MaxTagsPerContact {
		draft.TagIDs = append(draft.TagIDs, tag.ID)
	}
	return f.showTagSelection(ctx, userID, draft)
}

// showTagSelection renders the toggle loop over the user's tag catalogue.
func (f *ContactFlow) showTagSelection(ctx context.Context, userID string, draft *models.ContactDraft) error {
	if err := f.sm.Set(ctx, userID, StateContactTags, draft); err != nil {
		return err
	}
	tags, err := f.st.ListTags(userID)
	if err != nil {
		return f.fail(ctx, userID)
	}

	var rows [][]messaging.Button
	for _, t := range tags {
		label := t.Name
		if indexOfString(draft.TagIDs, t.ID) >= 0 {
			label = "✓ " + label
		}
		rows = append(rows, []messaging.Button{{Label: label, Data: EncodeCallback(CBContactTagToggle, t.ID)}})
	}
	rows = append(rows, []messaging.Button{{Label: "Done", Data: EncodeCallback(CBContactTagsDone, "")}})

	body := fmt.Sprintf("🏷 Pick up to %d tags, or send text to create a new one.", models.MaxTagsPerContact)
	if len(tags) == 0 {
		body = "🏷 No tags yet. Send text to create one, or tap Done."
	}
	return f.msg.SendMessageWithButtons(ctx, userID, body, rows)
}

func (f *ContactFlow) loadDraft(ctx context.Context, userID string) (*models.ContactDraft, error) {
	st, err := f.sm.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var draft models.ContactDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (f *ContactFlow) validateField(draft Draft, field, value string) error {
	switch field {
	case "first_name", "last_name", "company":
		if len(value) > models.MaxTitleLength {
			return models.ErrTitleTooLong
		}
	case "email":
		if !strings.Contains(value, "@") {
			return fmt.Errorf("that doesn't look like an email address")
		}
	}
	return nil
}

// showConfirmation renders the summary with one edit button per field. The
// wizard hands off here after its last field; the tag loop is inserted
// before confirmation on the first pass only.
func (f *ContactFlow) showConfirmation(ctx context.Context, userID string, draft Draft) error {
	cd, ok := draft.(*models.ContactDraft)
	if !ok {
		return fmt.Errorf("unexpected draft type %T", draft)
	}
	// First arrival from the wizard detours through tag selection.
	if !cd.TagsOffered {
		cd.TagsOffered = true
		return f.showTagSelection(ctx, userID, cd)
	}

	if err := f.sm.Set(ctx, userID, StateContactConfirm, cd); err != nil {
		return err
	}

	tagNames, err := f.tagNames(userID, cd.TagIDs)
	if err != nil {
		return f.fail(ctx, userID)
	}
	summary := fmt.Sprintf("👤 Contact summary\n• Name: %s %s\n• Handle: %s\n• Company: %s\n• Email: %s\n• Note: %s\n• Tags: %s",
		cd.FirstName, cd.LastName, orDash(cd.Handle), orDash(cd.Company), orDash(cd.Email), orDash(cd.Note), orDash(strings.Join(tagNames, ", ")))
	buttons := [][]messaging.Button{
		{{Label: "Edit first name", Data: EncodeCallback(CBContactEdit, "first_name")},
			{Label: "Edit last name", Data: EncodeCallback(CBContactEdit, "last_name")}},
		{{Label: "Edit handle", Data: EncodeCallback(CBContactEdit, "handle")},
			{Label: "Edit company", Data: EncodeCallback(CBContactEdit, "company")}},
		{{Label: "Edit email", Data: EncodeCallback(CBContactEdit, "email")},
			{Label: "Edit note", Data: EncodeCallback(CBContactEdit, "note")}},
		{{Label: "Edit tags", Data: EncodeCallback(CBContactEdit, "tags")}},
		{{Label: "✅ Save contact", Data: EncodeCallback(CBContactSave, "")},
			{Label: "Cancel", Data: EncodeCallback(CBCancel, "")}},
	}
	return f.msg.SendMessageWithButtons(ctx, userID, summary, buttons)
}

func (f *ContactFlow) tagNames(userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tags, err := f.st.ListTags(userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(tags))
	for _, t := range tags {
		byID[t.ID] = t.Name
	}
	var names []string
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *ContactFlow) fail(ctx context.Context, userID string) error {
	_ = f.sm.Clear(ctx, userID)
	return f.msg.SendMessage(ctx, userID, "Something went wrong; nothing was saved. Please try again.")
}

// eventButtons renders one selector button per event across a trip's days.
func eventButtons(it *models.Itinerary) [][]messaging.Button {
	var rows [][]messaging.Button
	for _, day := range it.Days {
		for _, ev := range day.Events {
			label := fmt.Sprintf("%s (%s %s)", ev.Title, day.Date, ev.StartTime)
			rows = append(rows, []messaging.Button{{Label: label, Data: EncodeCallback(CBContactEvent, ev.ID)}})
		}
	}
	return rows
}

func indexOfString(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
