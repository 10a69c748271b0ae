// Package bot routes incoming Telegram updates to the conversational flows:
// commands, callback-button presses, forwarded messages, and free text keyed
// off the user's persisted conversation state.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tripmate-app/tripmate/internal/flow"
	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

const helpText = `Here's what I can do:
/newtrip - create a trip itinerary
/newevent - add an event to a trip (by hand or from event links)
/newcontact - save someone you met
/trips - list your trips
/cancel - abandon whatever we're in the middle of

Forward me a message from someone you met and I'll look them up or help you save them.`

// commandHandler handles one slash command for one user.
type commandHandler func(ctx context.Context, userID string) error

// callbackHandler handles one decoded callback press (prefix already stripped).
type callbackHandler func(ctx context.Context, userID, arg string) error

// textFlow is the slice of a flow that consumes free text while one of its
// states is active.
type textFlow interface {
	HandleText(ctx context.Context, userID string, st *models.ConversationState, text string) error
}

// skipFlow is the slice of a flow that handles the shared skip button.
type skipFlow interface {
	HandleSkip(ctx context.Context, userID string, st *models.ConversationState) error
}

// Dispatcher routes updates to flows. All routing tables are built once at
// construction; Dispatch itself only reads them.
type Dispatcher struct {
	sm  flow.StateManager
	st  store.Store
	msg messaging.Service

	itineraries *flow.ItineraryFlow
	events      *flow.EventFlow
	contacts    *flow.ContactFlow
	forwards    *flow.ForwardFlow

	commands   map[string]commandHandler
	callbacks  map[string]callbackHandler
	textRoutes map[string]textFlow
	skipRoutes map[string]skipFlow

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDispatcher builds the dispatcher and its routing tables.
func NewDispatcher(sm flow.StateManager, st store.Store, msg messaging.Service,
	itineraries *flow.ItineraryFlow, events *flow.EventFlow, contacts *flow.ContactFlow, forwards *flow.ForwardFlow) *Dispatcher {
	d := &Dispatcher{
		sm:          sm,
		st:          st,
		msg:         msg,
		itineraries: itineraries,
		events:      events,
		contacts:    contacts,
		forwards:    forwards,
		locks:       make(map[string]*sync.Mutex),
	}

	d.commands = map[string]commandHandler{
		"start":      d.handleStart,
		"help":       d.handleHelp,
		"cancel":     d.handleCancel,
		"newtrip":    itineraries.Start,
		"newevent":   events.Start,
		"newcontact": contacts.Start,
		"trips":      d.handleTrips,
	}

	d.callbacks = map[string]callbackHandler{
		flow.CBCancel: func(ctx context.Context, userID, _ string) error { return d.handleCancel(ctx, userID) },
		flow.CBSkip:   d.handleSkip,

		flow.CBItinEdit: itineraries.HandleEdit,
		flow.CBItinSave: dropArg(itineraries.HandleSave),

		flow.CBEventItinerary:  events.HandleItineraryPicked,
		flow.CBEventManual:     dropArg(events.HandleManualMode),
		flow.CBEventImport:     dropArg(events.HandleImportMode),
		flow.CBEventEdit:       events.HandleEdit,
		flow.CBEventSave:       dropArg(events.HandleSave),
		flow.CBEventImportDone: dropArg(events.HandleImportDone),

		flow.CBContactItinerary: contacts.HandleItineraryPicked,
		flow.CBContactEvent:     contacts.HandleEventPicked,
		flow.CBContactSkipEvent: dropArg(contacts.HandleEventSkipped),
		flow.CBContactTagToggle: contacts.HandleTagToggle,
		flow.CBContactTagsDone:  dropArg(contacts.HandleTagsDone),
		flow.CBContactEdit:      contacts.HandleEdit,
		flow.CBContactSave:      dropArg(contacts.HandleSave),

		flow.CBForwardAddNote:   forwards.HandleAddNote,
		flow.CBForwardNewEntry:  dropArg(forwards.HandleNewEntry),
		flow.CBForwardEventYes:  dropArg(forwards.HandleEventYes),
		flow.CBForwardEventPick: dropArg(forwards.HandleEventPick),
		flow.CBForwardEventSel:  forwards.HandleEventSelected,
		flow.CBForwardNoEvent:   dropArg(forwards.HandleNoEvent),
	}

	d.textRoutes = map[string]textFlow{
		flow.PrefixItinerary: itineraries,
		flow.PrefixEvent:     events,
		flow.PrefixContact:   contacts,
		flow.PrefixForward:   forwards,
	}

	d.skipRoutes = map[string]skipFlow{
		flow.PrefixItinerary: itineraries,
		flow.PrefixEvent:     events,
		flow.PrefixContact:   contacts,
	}

	return d
}

// dropArg adapts a no-argument flow handler to the callback signature.
func dropArg(fn func(ctx context.Context, userID string) error) callbackHandler {
	return func(ctx context.Context, userID, _ string) error { return fn(ctx, userID) }
}

// Dispatch routes one inbound update. Handler panics are recovered so a bad
// update never takes the webhook worker down; updates for the same user are
// serialized so the conversation record has one writer at a time.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher.Dispatch: recovered from panic", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		d.dispatchCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		d.dispatchMessage(ctx, update.Message)
	default:
		slog.Debug("Dispatcher.Dispatch: ignoring update with no message or callback", "updateID", update.UpdateID)
	}
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		slog.Debug("Dispatcher.dispatchCallback: callback missing sender or message")
		return
	}
	userID := strconv.FormatInt(cb.Message.Chat.ID, 10)

	// Ack first so the client stops its spinner regardless of outcome.
	if err := d.msg.AnswerCallback(ctx, cb.ID, ""); err != nil {
		slog.Debug("Dispatcher.dispatchCallback: ack failed", "error", err)
	}

	prefix, arg := flow.DecodeCallback(cb.Data)
	handler, ok := d.callbacks[prefix]
	if !ok {
		slog.Debug("Dispatcher.dispatchCallback: unknown callback prefix", "prefix", prefix, "userID", userID)
		return
	}

	unlock := d.lockUser(userID)
	defer unlock()

	if err := handler(ctx, userID, arg); err != nil {
		slog.Error("Dispatcher.dispatchCallback: handler failed", "error", err, "prefix", prefix, "userID", userID)
	}
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, m *tgbotapi.Message) {
	userID := strconv.FormatInt(m.Chat.ID, 10)

	unlock := d.lockUser(userID)
	defer unlock()

	// Forwarded messages interrupt whatever flow is active.
	if sender, forwardedAt, ok := forwardedSender(m); ok {
		if err := d.forwards.Start(ctx, userID, sender, forwardedAt); err != nil {
			slog.Error("Dispatcher.dispatchMessage: forward handling failed", "error", err, "userID", userID)
		}
		return
	}

	if m.IsCommand() {
		d.dispatchCommand(ctx, userID, m.Command())
		return
	}

	if m.Text == "" {
		slog.Debug("Dispatcher.dispatchMessage: ignoring non-text message", "userID", userID)
		return
	}
	d.dispatchText(ctx, userID, m.Text)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, userID, command string) {
	handler, ok := d.commands[command]
	if !ok {
		if err := d.msg.SendMessage(ctx, userID, "I don't know that command.\n\n"+helpText); err != nil {
			slog.Error("Dispatcher.dispatchCommand: send failed", "error", err, "userID", userID)
		}
		return
	}
	if err := handler(ctx, userID); err != nil {
		slog.Error("Dispatcher.dispatchCommand: handler failed", "error", err, "command", command, "userID", userID)
	}
}

func (d *Dispatcher) dispatchText(ctx context.Context, userID, text string) {
	st, err := d.sm.Get(ctx, userID)
	if err != nil {
		slog.Error("Dispatcher.dispatchText: state lookup failed", "error", err, "userID", userID)
		return
	}
	for prefix, fl := range d.textRoutes {
		if strings.HasPrefix(st.State, prefix) {
			if err := fl.HandleText(ctx, userID, st, text); err != nil {
				slog.Error("Dispatcher.dispatchText: flow failed", "error", err, "state", st.State, "userID", userID)
			}
			return
		}
	}
	// Idle (or an unrecognized state): show help rather than guessing.
	if st.State != models.StateIdle {
		slog.Error("Dispatcher.dispatchText: unroutable state, resetting", "state", st.State, "userID", userID)
		_ = d.sm.Clear(ctx, userID)
	}
	if err := d.msg.SendMessage(ctx, userID, helpText); err != nil {
		slog.Error("Dispatcher.dispatchText: send failed", "error", err, "userID", userID)
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, userID string) error {
	return d.msg.SendMessage(ctx, userID, "👋 Welcome to Tripmate! I keep your trip schedules and the people you meet in one place.\n\n"+helpText)
}

func (d *Dispatcher) handleHelp(ctx context.Context, userID string) error {
	return d.msg.SendMessage(ctx, userID, helpText)
}

// handleCancel abandons the active flow. It only resets the conversation
// record; drafts are never persisted as domain objects, so there is nothing
// else to undo.
func (d *Dispatcher) handleCancel(ctx context.Context, userID string) error {
	st, err := d.sm.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st.State == models.StateIdle {
		return d.msg.SendMessage(ctx, userID, "Nothing to cancel.")
	}
	if err := d.sm.Clear(ctx, userID); err != nil {
		return err
	}
	return d.msg.SendMessage(ctx, userID, "❌ Cancelled. Nothing was saved.")
}

func (d *Dispatcher) handleTrips(ctx context.Context, userID string) error {
	itins, err := d.st.ListItineraries(userID)
	if err != nil {
		slog.Error("Dispatcher.handleTrips: list failed", "error", err, "userID", userID)
		return d.msg.SendMessage(ctx, userID, "Something went wrong listing your trips. Please try again.")
	}
	if len(itins) == 0 {
		return d.msg.SendMessage(ctx, userID, "You don't have any trips yet. Create one with /newtrip.")
	}
	var b strings.Builder
	b.WriteString("🧳 Your trips:\n")
	for _, it := range itins {
		fmt.Fprintf(&b, "• %s (%s, %s to %s, %d events)\n", it.Title, it.Location, it.StartDate, it.EndDate, it.EventCount())
	}
	return d.msg.SendMessage(ctx, userID, strings.TrimRight(b.String(), "\n"))
}

// handleSkip routes the shared skip button to the flow owning the current state.
func (d *Dispatcher) handleSkip(ctx context.Context, userID, _ string) error {
	st, err := d.sm.Get(ctx, userID)
	if err != nil {
		return err
	}
	for prefix, fl := range d.skipRoutes {
		if strings.HasPrefix(st.State, prefix) {
			return fl.HandleSkip(ctx, userID, st)
		}
	}
	slog.Debug("Dispatcher.handleSkip: skip pressed outside a wizard", "state", st.State, "userID", userID)
	return nil
}

// lockUser serializes update handling per user.
func (d *Dispatcher) lockUser(userID string) func() {
	d.mu.Lock()
	l, ok := d.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[userID] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// forwardedSender extracts the original sender of a forwarded message.
// Telegram exposes three shapes: a full user, a privacy-hidden display name,
// and a channel forward.
func forwardedSender(m *tgbotapi.Message) (models.ForwardedSender, time.Time, bool) {
	forwardedAt := time.Unix(int64(m.ForwardDate), 0)
	switch {
	case m.ForwardFrom != nil:
		sender := models.ForwardedSender{
			FirstName: m.ForwardFrom.FirstName,
			LastName:  m.ForwardFrom.LastName,
		}
		if m.ForwardFrom.UserName != "" {
			sender.Handle = "@" + m.ForwardFrom.UserName
		}
		return sender, forwardedAt, true
	case m.ForwardSenderName != "":
		first, last, _ := strings.Cut(m.ForwardSenderName, " ")
		return models.ForwardedSender{FirstName: first, LastName: last}, forwardedAt, true
	case m.ForwardFromChat != nil:
		return models.ForwardedSender{FirstName: m.ForwardFromChat.Title}, forwardedAt, true
	}
	return models.ForwardedSender{}, time.Time{}, false
}
