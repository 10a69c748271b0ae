package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
)

func newTestWizard(t *testing.T, validate FieldValidator) (*Wizard, *messaging.Recorder, *confirmSpy) {
	t.Helper()
	sm, _ := NewTestStateManager()
	rec := messaging.NewRecorder()
	spy := &confirmSpy{}
	specs := []models.FieldSpec{
		{State: StateContactFirstName, Field: "first_name", Prompt: "First name?", Required: true},
		{State: StateContactHandle, Field: "handle", Prompt: "Handle?", Required: false},
		{State: StateContactEmail, Field: "email", Prompt: "Email?", Required: false},
	}
	return NewWizard(specs, sm, rec, validate, spy.confirm), rec, spy
}

type confirmSpy struct {
	calls int
	draft Draft
}

func (c *confirmSpy) confirm(ctx context.Context, userID string, draft Draft) error {
	c.calls++
	c.draft = draft
	return nil
}

func TestWizardStartPromptsFirstField(t *testing.T) {
	w, rec, _ := newTestWizard(t, nil)
	draft := &models.ContactDraft{}

	if err := w.Start(context.Background(), "u1", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || last.Body != "First name?" {
		t.Fatalf("expected first prompt, got %+v", last)
	}
	if len(last.Buttons) != 0 {
		t.Error("required field should not carry a skip button")
	}
}

func TestWizardSkipsPrepopulatedFields(t *testing.T) {
	w, rec, _ := newTestWizard(t, nil)
	draft := &models.ContactDraft{FirstName: "Alice", Handle: "@alice"}

	if err := w.Start(context.Background(), "u1", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || last.Body != "Email?" {
		t.Fatalf("expected wizard to jump to email, got %+v", last)
	}
	if len(last.Buttons) == 0 {
		t.Error("optional field should carry a skip button")
	}
}

func TestWizardCaptureAdvancesAndCompletes(t *testing.T) {
	w, _, spy := newTestWizard(t, nil)
	draft := &models.ContactDraft{}
	ctx := context.Background()

	if err := w.CaptureText(ctx, "u1", StateContactFirstName, " Alice ", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.FirstName != "Alice" {
		t.Errorf("expected trimmed capture, got %q", draft.FirstName)
	}
	if err := w.CaptureText(ctx, "u1", StateContactHandle, "alice", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Handle != "@alice" {
		t.Errorf("expected normalized handle, got %q", draft.Handle)
	}
	if err := w.CaptureText(ctx, "u1", StateContactEmail, "alice@example.com", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spy.calls != 1 {
		t.Errorf("expected confirmation after last field, got %d calls", spy.calls)
	}
}

func TestWizardValidationRepromptsWithoutStoring(t *testing.T) {
	validate := func(draft Draft, field, value string) error {
		if field == "email" && !strings.Contains(value, "@") {
			return models.ErrEmptyTitle // any error will do
		}
		return nil
	}
	w, rec, spy := newTestWizard(t, validate)
	draft := &models.ContactDraft{FirstName: "Alice", Handle: "@alice"}

	if err := w.CaptureText(context.Background(), "u1", StateContactEmail, "not-an-email", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Email != "" {
		t.Errorf("invalid value must not be stored, got %q", draft.Email)
	}
	if spy.calls != 0 {
		t.Error("confirmation must not run after a failed validation")
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "⚠️") {
		t.Errorf("expected warning re-prompt, got %+v", last)
	}
}

func TestWizardEditDetourReturnsToConfirmation(t *testing.T) {
	w, _, spy := newTestWizard(t, nil)
	draft := &models.ContactDraft{FirstName: "Alice", Handle: "@alice", Email: "a@example.com"}
	ctx := context.Background()

	if err := w.EnterField(ctx, "u1", "handle", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !draft.InEditMode() {
		t.Fatal("expected edit mode after EnterField")
	}
	if err := w.CaptureText(ctx, "u1", StateContactHandle, "bob", draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Handle != "@bob" {
		t.Errorf("edited value not stored, got %q", draft.Handle)
	}
	if draft.InEditMode() {
		t.Error("edit mode not cleared after capture")
	}
	if spy.calls != 1 {
		t.Errorf("expected direct return to confirmation, got %d calls", spy.calls)
	}
}

func TestWizardSkipRequiredReprompts(t *testing.T) {
	w, rec, _ := newTestWizard(t, nil)
	draft := &models.ContactDraft{}

	if err := w.Skip(context.Background(), "u1", StateContactFirstName, draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "required") {
		t.Errorf("expected required re-prompt, got %+v", last)
	}
}

func TestWizardSkipOptionalAdvances(t *testing.T) {
	w, rec, _ := newTestWizard(t, nil)
	draft := &models.ContactDraft{FirstName: "Alice"}

	if err := w.Skip(context.Background(), "u1", StateContactHandle, draft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rec.Last()
	if last == nil || last.Body != "Email?" {
		t.Errorf("expected next prompt after skip, got %+v", last)
	}
}

func TestNormalizeHandle(t *testing.T) {
	cases := map[string]string{
		"alice":   "@alice",
		"@alice":  "@alice",
		"@@alice": "@alice",
		" alice ": "@alice",
		"@":       "",
	}
	for in, want := range cases {
		if got := NormalizeHandle(in); got != want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", in, got, want)
		}
	}
}
