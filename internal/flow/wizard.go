package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
)

// Draft is the accessor surface a flow's typed draft exposes to the wizard.
type Draft interface {
	// Field returns the current value of a named wizard field.
	Field(name string) string
	// SetField stores a value; returns false for unknown fields.
	SetField(name, value string) bool
	// InEditMode reports whether the draft is in an edit detour.
	InEditMode() bool
	// SetEditMode toggles the edit detour flag.
	SetEditMode(v bool)
}

// FieldValidator checks a captured value before it is stored. A returned
// error is shown to the user and the field is re-prompted without advancing.
// The draft is provided for cross-field checks (e.g. end date after start).
type FieldValidator func(draft Draft, field, value string) error

// ConfirmFunc renders the owning flow's confirmation step once the traversal
// is complete (or an edit detour returns).
type ConfirmFunc func(ctx context.Context, userID string, draft Draft) error

// Wizard walks an ordered list of field specs, one conversation turn per
// field. Optional fields carry a skip button. Pre-populated fields are
// passed over without prompting; that is the only way a required field is
// ever bypassed.
type Wizard struct {
	specs    []models.FieldSpec
	sm       StateManager
	msg      messaging.Service
	validate FieldValidator
	confirm  ConfirmFunc
}

// NewWizard creates a wizard over a static field list.
func NewWizard(specs []models.FieldSpec, sm StateManager, msg messaging.Service, validate FieldValidator, confirm ConfirmFunc) *Wizard {
	return &Wizard{specs: specs, sm: sm, msg: msg, validate: validate, confirm: confirm}
}

// indexOf returns the spec index owning the given state.
func (w *Wizard) indexOf(state string) (int, bool) {
	for i, s := range w.specs {
		if s.State == state {
			return i, true
		}
	}
	return 0, false
}

// specForField returns the spec that fills the given draft field.
func (w *Wizard) specForField(field string) (models.FieldSpec, bool) {
	for _, s := range w.specs {
		if s.Field == field {
			return s, true
		}
	}
	return models.FieldSpec{}, false
}

// Owns reports whether the given conversation state belongs to this wizard.
func (w *Wizard) Owns(state string) bool {
	_, ok := w.indexOf(state)
	return ok
}

// Start begins the traversal at the first unfilled field.
func (w *Wizard) Start(ctx context.Context, userID string, draft Draft) error {
	return w.Advance(ctx, userID, draft, -1)
}

// Advance moves to the field after currentIndex, skipping fields that are
// already populated. Past the last field it hands off to the flow's
// confirmation step.
func (w *Wizard) Advance(ctx context.Context, userID string, draft Draft, currentIndex int) error {
	next := currentIndex + 1
	for next < len(w.specs) && draft.Field(w.specs[next].Field) != "" {
		next++
	}
	if next >= len(w.specs) {
		slog.Debug("Wizard.Advance: traversal complete", "userID", userID)
		return w.confirm(ctx, userID, draft)
	}

	spec := w.specs[next]
	if err := w.sm.Set(ctx, userID, spec.State, draft); err != nil {
		return err
	}
	return w.prompt(ctx, userID, spec)
}

// CaptureText stores the user's reply for the field owned by currentState.
// In an edit detour it clears the flag and returns to confirmation instead
// of advancing.
func (w *Wizard) CaptureText(ctx context.Context, userID, currentState, text string, draft Draft) error {
	idx, ok := w.indexOf(currentState)
	if !ok {
		return fmt.Errorf("wizard does not own state %q", currentState)
	}
	spec := w.specs[idx]

	value := strings.TrimSpace(text)
	if value == "" {
		return w.msg.SendMessage(ctx, userID, "Please send a value."+skipHint(spec))
	}
	if spec.Field == "handle" {
		value = NormalizeHandle(value)
	}
	if w.validate != nil {
		if err := w.validate(draft, spec.Field, value); err != nil {
			slog.Debug("Wizard.CaptureText: validation failed", "userID", userID, "field", spec.Field, "error", err)
			return w.msg.SendMessage(ctx, userID, "⚠️ "+err.Error()+"\n"+spec.Prompt)
		}
	}
	draft.SetField(spec.Field, value)

	if draft.InEditMode() {
		draft.SetEditMode(false)
		slog.Debug("Wizard.CaptureText: edit detour returning to confirmation", "userID", userID, "field", spec.Field)
		return w.confirm(ctx, userID, draft)
	}
	return w.Advance(ctx, userID, draft, idx)
}

// Skip bypasses the field owned by currentState. Valid only for optional
// fields; a required field is re-prompted instead.
func (w *Wizard) Skip(ctx context.Context, userID, currentState string, draft Draft) error {
	idx, ok := w.indexOf(currentState)
	if !ok {
		return fmt.Errorf("wizard does not own state %q", currentState)
	}
	spec := w.specs[idx]
	if spec.Required {
		return w.msg.SendMessage(ctx, userID, "This field is required.\n"+spec.Prompt)
	}
	draft.SetField(spec.Field, "")
	if draft.InEditMode() {
		draft.SetEditMode(false)
		return w.confirm(ctx, userID, draft)
	}
	return w.Advance(ctx, userID, draft, idx)
}

// EnterField starts an edit detour: re-enters a single field's state, after
// which CaptureText returns straight to confirmation.
func (w *Wizard) EnterField(ctx context.Context, userID, field string, draft Draft) error {
	spec, ok := w.specForField(field)
	if !ok {
		return fmt.Errorf("wizard has no field %q", field)
	}
	draft.SetEditMode(true)
	if err := w.sm.Set(ctx, userID, spec.State, draft); err != nil {
		return err
	}
	return w.prompt(ctx, userID, spec)
}

func (w *Wizard) prompt(ctx context.Context, userID string, spec models.FieldSpec) error {
	if spec.Required {
		return w.msg.SendMessage(ctx, userID, spec.Prompt)
	}
	buttons := messaging.Row(messaging.Button{Label: "Skip", Data: EncodeCallback(CBSkip, "")})
	return w.msg.SendMessageWithButtons(ctx, userID, spec.Prompt, buttons)
}

func skipHint(spec models.FieldSpec) string {
	if spec.Required {
		return ""
	}
	return " Or tap Skip."
}

// NormalizeHandle coerces a messaging handle to a single @-prefixed form.
func NormalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimLeft(h, "@")
	if h == "" {
		return ""
	}
	return "@" + h
}
