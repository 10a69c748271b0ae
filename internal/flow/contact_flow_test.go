package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

func newContactFixture(t *testing.T) (*ContactFlow, *StoreBasedStateManager, *store.InMemoryStore, *messaging.Recorder) {
	t.Helper()
	sm, st := NewTestStateManager()
	rec := messaging.NewRecorder()
	return NewContactFlow(sm, st, rec, ""), sm, st, rec
}

func TestContactFlowHappyPath(t *testing.T) {
	f, sm, st, rec := newContactFixture(t)
	ctx := context.Background()
	it := testItinerary()
	day := it.DayByDate("2025-03-15")
	day.Events = append(day.Events, models.Event{ID: "e1", Title: "Kickoff", StartTime: "09:00"})
	st.SaveItinerary(*it)

	if err := f.Start(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.HandleItineraryPicked(ctx, "u1", "i1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conv, _ := sm.Get(ctx, "u1")
	if conv.State != StateContactSelectEvent {
		t.Fatalf("expected event selector, got %q", conv.State)
	}
	if err := f.HandleEventPicked(ctx, "u1", "e1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answers := []string{"Alice", "Lee", "@alice", "Acme", "alice@acme.io", "met at the booth"}
	for _, answer := range answers {
		conv, _ = sm.Get(ctx, "u1")
		if err := f.HandleText(ctx, "u1", conv, answer); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// After the last field the flow detours through tag selection.
	conv, _ = sm.Get(ctx, "u1")
	if conv.State != StateContactTags {
		t.Fatalf("expected tag selection, got %q", conv.State)
	}
	// Free text in the tag state creates and selects a new tag.
	if err := f.HandleText(ctx, "u1", conv, "investor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.HandleTagsDone(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conv, _ = sm.Get(ctx, "u1")
	if conv.State != StateContactConfirm {
		t.Fatalf("expected confirmation, got %q", conv.State)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "investor") {
		t.Errorf("expected tag in summary, got %+v", last)
	}

	if err := f.HandleSave(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contacts, _ := st.ListContacts("u1")
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	c := contacts[0]
	if c.FirstName != "Alice" || c.Handle != "@alice" || c.ItineraryID != "i1" || c.EventID != "e1" {
		t.Errorf("contact fields wrong: %+v", c)
	}
	if len(c.Notes) != 1 || c.Notes[0] != "met at the booth" {
		t.Errorf("note not stored: %+v", c.Notes)
	}
	if len(c.TagIDs) != 1 {
		t.Errorf("tag not attached: %+v", c.TagIDs)
	}
	tags, _ := st.ListTags("u1")
	if len(tags) != 1 || tags[0].Name != "investor" {
		t.Errorf("tag not in catalogue: %+v", tags)
	}
}

func TestContactFlowTagLimitPerContact(t *testing.T) {
	f, _, st, rec := newContactFixture(t)
	ctx := context.Background()
	st.SaveItinerary(*testItinerary())
	for _, name := range []string{"a", "b", "c", "d"} {
		st.SaveTag(models.Tag{ID: name, UserID: "u1", Name: name})
	}

	f.Start(ctx, "u1")
	f.HandleItineraryPicked(ctx, "u1", "i1")

	for _, id := range []string{"a", "b", "c"} {
		if err := f.HandleTagToggle(ctx, "u1", id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := f.HandleTagToggle(ctx, "u1", "d"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "at most") {
		t.Errorf("expected tag limit message, got %+v", last)
	}
}

func TestContactFlowTagToggleDeselects(t *testing.T) {
	f, sm, st, _ := newContactFixture(t)
	ctx := context.Background()
	st.SaveItinerary(*testItinerary())
	st.SaveTag(models.Tag{ID: "t1", UserID: "u1", Name: "speaker"})

	f.Start(ctx, "u1")
	f.HandleItineraryPicked(ctx, "u1", "i1")
	f.HandleTagToggle(ctx, "u1", "t1")
	f.HandleTagToggle(ctx, "u1", "t1")

	conv, _ := sm.Get(ctx, "u1")
	var draft models.ContactDraft
	if err := DecodeDraft(conv, &draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(draft.TagIDs) != 0 {
		t.Errorf("expected deselected tag, got %+v", draft.TagIDs)
	}
}

func TestContactFlowTagCatalogueLimit(t *testing.T) {
	f, sm, st, rec := newContactFixture(t)
	ctx := context.Background()
	st.SaveItinerary(*testItinerary())
	for i := 0; i < models.MaxTagsPerUser; i++ {
		st.SaveTag(models.Tag{ID: string(rune('a' + i)), UserID: "u1", Name: string(rune('a' + i))})
	}

	f.Start(ctx, "u1")
	f.HandleItineraryPicked(ctx, "u1", "i1")
	f.HandleTagToggle(ctx, "u1", "a") // enter the tag state

	conv, _ := sm.Get(ctx, "u1")
	if err := f.HandleText(ctx, "u1", conv, "one more"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "limit") {
		t.Errorf("expected catalogue limit message, got %+v", last)
	}
	tags, _ := st.ListTags("u1")
	if len(tags) != models.MaxTagsPerUser {
		t.Errorf("tag created past the limit: %d", len(tags))
	}
}

func TestContactFlowSeededSkipsFilledFields(t *testing.T) {
	f, sm, st, rec := newContactFixture(t)
	ctx := context.Background()
	st.SaveItinerary(*testItinerary())

	seed := models.ContactDraft{ItineraryID: "i1", FirstName: "Alice", LastName: "Lee", Handle: "@alice"}
	if err := f.StartSeeded(ctx, "u1", seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Name and handle are pre-filled, so the wizard starts at company.
	conv, _ := sm.Get(ctx, "u1")
	if conv.State != StateContactCompany {
		t.Fatalf("expected company prompt, got %q", conv.State)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "Company") {
		t.Errorf("expected company prompt, got %+v", last)
	}
}

func TestContactFlowEditModeRevisitsTagsOnlyOnce(t *testing.T) {
	f, sm, st, _ := newContactFixture(t)
	ctx := context.Background()
	st.SaveItinerary(*testItinerary())

	seed := models.ContactDraft{ItineraryID: "i1", FirstName: "Alice", LastName: "Lee", Handle: "@alice",
		Company: "Acme", Email: "a@acme.io", Note: "hi"}
	if err := f.StartSeeded(ctx, "u1", seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Fully seeded drafts go straight to the tag step.
	conv, _ := sm.Get(ctx, "u1")
	if conv.State != StateContactTags {
		t.Fatalf("expected tag selection, got %q", conv.State)
	}
	if err := f.HandleTagsDone(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Editing a field from the confirmation returns to the confirmation, not
	// back through the tag step.
	if err := f.HandleEdit(ctx, "u1", "company"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conv, _ = sm.Get(ctx, "u1")
	if err := f.HandleText(ctx, "u1", conv, "Acme GmbH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conv, _ = sm.Get(ctx, "u1")
	if conv.State != StateContactConfirm {
		t.Errorf("edit should return to confirmation, got %q", conv.State)
	}
}
