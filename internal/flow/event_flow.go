package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/pageimport"
	"github.com/tripmate-app/tripmate/internal/store"
)

// eventFields is the static wizard traversal for manual event creation.
var eventFields = []models.FieldSpec{
	{State: StateEventTitle, Field: "title", Prompt: "🎫 What's the event called?", Required: true},
	{State: StateEventDate, Field: "date", Prompt: "📅 Which day? (YYYY-MM-DD)", Required: true},
	{State: StateEventStartTime, Field: "start_time", Prompt: "🕐 Start time? (HH:MM)", Required: true},
	{State: StateEventEndTime, Field: "end_time", Prompt: "🕐 End time? (HH:MM)", Required: false},
	{State: StateEventLocation, Field: "location", Prompt: "📍 Where is it?", Required: false},
	{State: StateEventNotes, Field: "notes", Prompt: "📝 Any notes?", Required: false},
}

// EventFlow adds events to a trip day, manually or by importing event-page
// links.
type EventFlow struct {
	sm      StateManager
	st      store.Store
	msg     messaging.Service
	pages   PageFetcher
	baseURL string
	wizard  *Wizard
}

// NewEventFlow wires the event flow.
func NewEventFlow(sm StateManager, st store.Store, msg messaging.Service, pages PageFetcher, baseURL string) *EventFlow {
	f := &EventFlow{sm: sm, st: st, msg: msg, pages: pages, baseURL: baseURL}
	f.wizard = NewWizard(eventFields, sm, msg, f.validateField, f.showConfirmation)
	return f
}

// Start begins event creation with the itinerary selector.
func (f *EventFlow) Start(ctx context.Context, userID string) error {
	itins, err := f.st.ListItineraries(userID)
	if err != nil {
		slog.Error("EventFlow.Start: list failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if len(itins) == 0 {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "You don't have any trips yet. Create one with /newtrip first.")
	}
	if err := f.sm.Set(ctx, userID, StateEventSelectItinerary, &models.EventDraft{}); err != nil {
		return err
	}
	return f.msg.SendMessageWithButtons(ctx, userID, "Which trip is this event for?", itineraryButtons(itins, CBEventItinerary))
}

// HandleItineraryPicked stores the selected itinerary and offers the mode choice.
func (f *EventFlow) HandleItineraryPicked(ctx context.Context, userID, itineraryID string) error {
	it, err := f.st.GetItinerary(userID, itineraryID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if it == nil {
		// Deleted from the web app between listing and the button press.
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "That trip no longer exists. Start again with /newevent.")
	}

	draft := &models.EventDraft{ItineraryID: itineraryID}
	if err := f.sm.Set(ctx, userID, StateEventMode, draft); err != nil {
		return err
	}
	buttons := messaging.Row(
		messaging.Button{Label: "✍️ Add manually", Data: EncodeCallback(CBEventManual, "")},
		messaging.Button{Label: "🔗 Import from link", Data: EncodeCallback(CBEventImport, "")},
	)
	return f.msg.SendMessageWithButtons(ctx, userID,
		fmt.Sprintf("Adding to %q (%s - %s). How would you like to add events?", it.Title, it.StartDate, it.EndDate), buttons)
}

// HandleManualMode enters the manual field wizard.
func (f *EventFlow) HandleManualMode(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.Start(ctx, userID, draft)
}

// HandleImportMode enters the link-import state. The state persists across
// repeated pastes until Done or /cancel.
func (f *EventFlow) HandleImportMode(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if err := f.sm.Set(ctx, userID, StateEventLumaInput, draft); err != nil {
		return err
	}
	return f.msg.SendMessageWithButtons(ctx, userID,
		"Paste one or more event links (lu.ma or luma.com). You can paste more links after each import.",
		messaging.Row(messaging.Button{Label: "Done", Data: EncodeCallback(CBEventImportDone, "")}))
}

// HandleImportDone leaves the import loop.
func (f *EventFlow) HandleImportDone(ctx context.Context, userID string) error {
	if err := f.sm.Clear(ctx, userID); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, userID, "Import finished. See the full schedule with /trips.")
}

// HandleText routes free text for any event flow state.
func (f *EventFlow) HandleText(ctx context.Context, userID string, st *models.ConversationState, text string) error {
	var draft models.EventDraft
	if err := DecodeDraft(st, &draft); err != nil {
		slog.Error("EventFlow.HandleText: decode failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	switch {
	case f.wizard.Owns(st.State):
		return f.wizard.CaptureText(ctx, userID, st.State, text, &draft)
	case st.State == StateEventLumaInput:
		return f.runImportBatch(ctx, userID, &draft, text)
	case st.State == StateEventConfirm:
		return f.showConfirmation(ctx, userID, &draft)
	default:
		return f.msg.SendMessage(ctx, userID, "Use the buttons above, or /cancel to start over.")
	}
}

// HandleSkip handles the wizard skip button.
func (f *EventFlow) HandleSkip(ctx context.Context, userID string, st *models.ConversationState) error {
	var draft models.EventDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.Skip(ctx, userID, st.State, &draft)
}

// HandleEdit starts an edit detour for one field from the confirmation screen.
func (f *EventFlow) HandleEdit(ctx context.Context, userID, field string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.EnterField(ctx, userID, field, draft)
}

// HandleSave commits the manual draft as a new event on its trip day.
func (f *EventFlow) HandleSave(ctx context.Context, userID string) error {
	draft, err := f.loadDraft(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}

	it, err := f.st.GetItinerary(userID, draft.ItineraryID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if it == nil {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "That trip no longer exists. Start again with /newevent.")
	}

	if err := f.validateDraft(draft, it); err != nil {
		return f.msg.SendMessage(ctx, userID, "⚠️ "+err.Error())
	}

	day := it.DayByDate(draft.Date)
	if day == nil {
		return f.msg.SendMessage(ctx, userID, "⚠️ "+models.ErrDateOutsideTrip.Error())
	}
	day.Events = append(day.Events, models.Event{
		ID:        uuid.NewString(),
		Title:     draft.Title,
		StartTime: draft.StartTime,
		EndTime:   draft.EndTime,
		Location:  draft.Location,
		Notes:     draft.Notes,
	})
	sortDayEvents(day)
	it.UpdatedAt = time.Now()

	if err := f.st.SaveItinerary(*it); err != nil {
		slog.Error("EventFlow.HandleSave: persist failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if err := f.sm.Clear(ctx, userID); err != nil {
		return err
	}
	slog.Info("EventFlow: event created", "userID", userID, "itineraryID", it.ID, "date", draft.Date)
	return f.msg.SendMessage(ctx, userID,
		fmt.Sprintf("✅ %q added to %s at %s.\n%s", draft.Title, draft.Date, draft.StartTime, DeepLink(f.baseURL, "trips", it.ID)))
}

// runImportBatch processes one pasted message of links and persists the
// itinerary once for the whole batch.
func (f *EventFlow) runImportBatch(ctx context.Context, userID string, draft *models.EventDraft, text string) error {
	urls := pageimport.ExtractEventURLs(text)
	if len(urls) == 0 {
		return f.msg.SendMessage(ctx, userID, "No event links found. Paste lu.ma or luma.com links, or tap Done.")
	}

	it, err := f.st.GetItinerary(userID, draft.ItineraryID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if it == nil {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "That trip no longer exists. Start again with /newevent.")
	}

	results := RunImportBatch(ctx, f.pages, it, urls, time.Now())

	added := 0
	for _, r := range results {
		if r.Status == models.ImportAdded {
			added++
		}
	}
	if added > 0 {
		it.UpdatedAt = time.Now()
		if err := f.st.SaveItinerary(*it); err != nil {
			slog.Error("EventFlow.runImportBatch: persist failed", "error", err, "userID", userID)
			return f.fail(ctx, userID)
		}
	}
	slog.Info("EventFlow: import batch processed", "userID", userID, "itineraryID", it.ID, "urls", len(urls), "added", added)

	return f.msg.SendMessageWithButtons(ctx, userID, FormatImportSummary(results),
		messaging.Row(messaging.Button{Label: "Done", Data: EncodeCallback(CBEventImportDone, "")}))
}

func (f *EventFlow) loadDraft(ctx context.Context, userID string) (*models.EventDraft, error) {
	st, err := f.sm.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var draft models.EventDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (f *EventFlow) validateField(draft Draft, field, value string) error {
	switch field {
	case "title":
		return ValidateTitle(value)
	case "date":
		return ValidateDate(value)
	case "start_time", "end_time":
		return ValidateTimeOfDay(value)
	case "location":
		if len(value) > models.MaxLocationLength {
			return models.ErrLocationTooLong
		}
	}
	return nil
}

func (f *EventFlow) validateDraft(draft *models.EventDraft, it *models.Itinerary) error {
	if err := ValidateTitle(draft.Title); err != nil {
		return err
	}
	if err := ValidateDate(draft.Date); err != nil {
		return err
	}
	if !it.ContainsDate(draft.Date) {
		return fmt.Errorf("%w (%s - %s)", models.ErrDateOutsideTrip, it.StartDate, it.EndDate)
	}
	if err := ValidateTimeOfDay(draft.StartTime); err != nil {
		return err
	}
	if draft.EndTime != "" {
		if err := ValidateTimeOfDay(draft.EndTime); err != nil {
			return err
		}
	}
	if it.EventCount() >= models.MaxEventsPerItinerary {
		return fmt.Errorf("%w (max %d)", models.ErrEventLimitReached, models.MaxEventsPerItinerary)
	}
	return nil
}

// showConfirmation renders the summary with one edit button per field.
func (f *EventFlow) showConfirmation(ctx context.Context, userID string, draft Draft) error {
	if err := f.sm.Set(ctx, userID, StateEventConfirm, draft); err != nil {
		return err
	}
	summary := fmt.Sprintf("🎫 Event summary\n• Title: %s\n• Date: %s\n• Time: %s%s\n• Location: %s\n• Notes: %s",
		draft.Field("title"), draft.Field("date"), draft.Field("start_time"),
		dashIfSet(draft.Field("end_time")), orDash(draft.Field("location")), orDash(draft.Field("notes")))
	buttons := [][]messaging.Button{
		{{Label: "Edit title", Data: EncodeCallback(CBEventEdit, "title")},
			{Label: "Edit date", Data: EncodeCallback(CBEventEdit, "date")}},
		{{Label: "Edit start", Data: EncodeCallback(CBEventEdit, "start_time")},
			{Label: "Edit end", Data: EncodeCallback(CBEventEdit, "end_time")}},
		{{Label: "Edit location", Data: EncodeCallback(CBEventEdit, "location")},
			{Label: "Edit notes", Data: EncodeCallback(CBEventEdit, "notes")}},
		{{Label: "✅ Save event", Data: EncodeCallback(CBEventSave, "")},
			{Label: "Cancel", Data: EncodeCallback(CBCancel, "")}},
	}
	return f.msg.SendMessageWithButtons(ctx, userID, summary, buttons)
}

func (f *EventFlow) fail(ctx context.Context, userID string) error {
	_ = f.sm.Clear(ctx, userID)
	return f.msg.SendMessage(ctx, userID, "Something went wrong; nothing was saved. Please try again.")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func dashIfSet(end string) string {
	if end == "" {
		return ""
	}
	return " - " + end
}

// itineraryButtons renders one selector button per itinerary with the given
// callback prefix.
func itineraryButtons(itins []models.Itinerary, prefix string) [][]messaging.Button {
	var rows [][]messaging.Button
	for _, it := range itins {
		label := fmt.Sprintf("%s (%s - %s)", it.Title, it.StartDate, it.EndDate)
		rows = append(rows, []messaging.Button{{Label: label, Data: EncodeCallback(prefix, it.ID)}})
	}
	rows = append(rows, []messaging.Button{{Label: "Cancel", Data: EncodeCallback(CBCancel, "")}})
	return rows
}
