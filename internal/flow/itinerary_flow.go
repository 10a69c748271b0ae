package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

// itineraryFields is the static wizard traversal for trip creation.
var itineraryFields = []models.FieldSpec{
	{State: StateItinTitle, Field: "title", Prompt: "🧳 What should this trip be called?", Required: true},
	{State: StateItinLocation, Field: "location", Prompt: "📍 Where is the trip? Send a city or region.", Required: true},
	{State: StateItinStartDate, Field: "start_date", Prompt: "📅 First day of the trip? (YYYY-MM-DD)", Required: true},
	{State: StateItinEndDate, Field: "end_date", Prompt: "📅 Last day of the trip? (YYYY-MM-DD)", Required: true},
}

// ItineraryFlow creates multi-day trips through the field wizard.
type ItineraryFlow struct {
	sm      StateManager
	st      store.Store
	msg     messaging.Service
	baseURL string
	wizard  *Wizard
}

// NewItineraryFlow wires the itinerary flow.
func NewItineraryFlow(sm StateManager, st store.Store, msg messaging.Service, baseURL string) *ItineraryFlow {
	f := &ItineraryFlow{sm: sm, st: st, msg: msg, baseURL: baseURL}
	f.wizard = NewWizard(itineraryFields, sm, msg, f.validateField, f.showConfirmation)
	return f
}

// Start begins a new trip wizard, discarding any prior in-flight state.
func (f *ItineraryFlow) Start(ctx context.Context, userID string) error {
	existing, err := f.st.ListItineraries(userID)
	if err != nil {
		slog.Error("ItineraryFlow.Start: list failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if len(existing) >= models.MaxItinerariesPerUser {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, fmt.Sprintf("You already have %d trips, which is the limit. Remove one in the web app before adding another.", models.MaxItinerariesPerUser))
	}
	return f.wizard.Start(ctx, userID, &models.ItineraryDraft{})
}

// HandleText routes free text for any itinerary flow state.
func (f *ItineraryFlow) HandleText(ctx context.Context, userID string, st *models.ConversationState, text string) error {
	var draft models.ItineraryDraft
	if err := DecodeDraft(st, &draft); err != nil {
		slog.Error("ItineraryFlow.HandleText: decode failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if f.wizard.Owns(st.State) {
		return f.wizard.CaptureText(ctx, userID, st.State, text, &draft)
	}
	if st.State == StateItinConfirm {
		return f.showConfirmation(ctx, userID, &draft)
	}
	return f.msg.SendMessage(ctx, userID, "Use the buttons above, or /cancel to start over.")
}

// HandleSkip handles the wizard skip button. Every itinerary field is
// required, so this re-prompts.
func (f *ItineraryFlow) HandleSkip(ctx context.Context, userID string, st *models.ConversationState) error {
	var draft models.ItineraryDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.Skip(ctx, userID, st.State, &draft)
}

// HandleEdit starts an edit detour for one field from the confirmation screen.
func (f *ItineraryFlow) HandleEdit(ctx context.Context, userID, field string) error {
	st, err := f.sm.Get(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	var draft models.ItineraryDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}
	return f.wizard.EnterField(ctx, userID, field, &draft)
}

// HandleSave commits the draft as a new itinerary.
func (f *ItineraryFlow) HandleSave(ctx context.Context, userID string) error {
	st, err := f.sm.Get(ctx, userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	var draft models.ItineraryDraft
	if err := DecodeDraft(st, &draft); err != nil {
		return f.fail(ctx, userID)
	}

	if err := f.validateDraft(&draft); err != nil {
		return f.msg.SendMessage(ctx, userID, "⚠️ "+err.Error())
	}
	existing, err := f.st.ListItineraries(userID)
	if err != nil {
		return f.fail(ctx, userID)
	}
	if len(existing) >= models.MaxItinerariesPerUser {
		_ = f.sm.Clear(ctx, userID)
		return f.msg.SendMessage(ctx, userID, "Trip limit reached; nothing was saved.")
	}

	now := time.Now()
	it := models.Itinerary{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     draft.Title,
		Location:  draft.Location,
		StartDate: draft.StartDate,
		EndDate:   draft.EndDate,
		Days:      BuildDays(draft.StartDate, draft.EndDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.st.SaveItinerary(it); err != nil {
		slog.Error("ItineraryFlow.HandleSave: persist failed", "error", err, "userID", userID)
		return f.fail(ctx, userID)
	}
	if err := f.sm.Clear(ctx, userID); err != nil {
		return err
	}
	slog.Info("ItineraryFlow: itinerary created", "userID", userID, "itineraryID", it.ID)
	return f.msg.SendMessage(ctx, userID,
		fmt.Sprintf("✅ Trip %q saved (%s - %s).\n%s", it.Title, it.StartDate, it.EndDate, DeepLink(f.baseURL, "trips", it.ID)))
}

func (f *ItineraryFlow) validateField(draft Draft, field, value string) error {
	switch field {
	case "title":
		return ValidateTitle(value)
	case "location":
		return ValidateLocation(value)
	case "start_date":
		return ValidateDate(value)
	case "end_date":
		if err := ValidateDate(value); err != nil {
			return err
		}
		if start := draft.Field("start_date"); start != "" {
			return ValidateDateRange(start, value)
		}
		return nil
	}
	return nil
}

func (f *ItineraryFlow) validateDraft(draft *models.ItineraryDraft) error {
	if err := ValidateTitle(draft.Title); err != nil {
		return err
	}
	if err := ValidateLocation(draft.Location); err != nil {
		return err
	}
	return ValidateDateRange(draft.StartDate, draft.EndDate)
}

// showConfirmation renders the summary with one edit button per field.
func (f *ItineraryFlow) showConfirmation(ctx context.Context, userID string, draft Draft) error {
	if err := f.sm.Set(ctx, userID, StateItinConfirm, draft); err != nil {
		return err
	}
	summary := fmt.Sprintf("🧳 Trip summary\n• Title: %s\n• Location: %s\n• Dates: %s - %s",
		draft.Field("title"), draft.Field("location"), draft.Field("start_date"), draft.Field("end_date"))
	buttons := [][]messaging.Button{
		{{Label: "Edit title", Data: EncodeCallback(CBItinEdit, "title")},
			{Label: "Edit location", Data: EncodeCallback(CBItinEdit, "location")}},
		{{Label: "Edit start", Data: EncodeCallback(CBItinEdit, "start_date")},
			{Label: "Edit end", Data: EncodeCallback(CBItinEdit, "end_date")}},
		{{Label: "✅ Save trip", Data: EncodeCallback(CBItinSave, "")},
			{Label: "Cancel", Data: EncodeCallback(CBCancel, "")}},
	}
	return f.msg.SendMessageWithButtons(ctx, userID, summary, buttons)
}

// fail clears state and reports a terse failure, per the persistence-error
// policy: no partial-success claims.
func (f *ItineraryFlow) fail(ctx context.Context, userID string) error {
	_ = f.sm.Clear(ctx, userID)
	return f.msg.SendMessage(ctx, userID, "Something went wrong; your trip was not saved. Please try again.")
}

// DeepLink renders a web-app link for a saved record.
func DeepLink(baseURL, kind, id string) string {
	if baseURL == "" {
		return ""
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return fmt.Sprintf("%s/%s/%s", baseURL, kind, id)
}
