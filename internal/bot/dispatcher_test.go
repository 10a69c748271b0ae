package bot

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tripmate-app/tripmate/internal/flow"
	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/models"
	"github.com/tripmate-app/tripmate/internal/store"
)

func newDispatcherFixture(t *testing.T) (*Dispatcher, *flow.StoreBasedStateManager, *store.InMemoryStore, *messaging.Recorder) {
	t.Helper()
	st := store.NewInMemoryStore()
	sm := flow.NewStoreBasedStateManager(st)
	rec := messaging.NewRecorder()

	itineraries := flow.NewItineraryFlow(sm, st, rec, "")
	events := flow.NewEventFlow(sm, st, rec, nil, "")
	contacts := flow.NewContactFlow(sm, st, rec, "")
	forwards := flow.NewForwardFlow(sm, st, rec, contacts)

	return NewDispatcher(sm, st, rec, itineraries, events, contacts, forwards), sm, st, rec
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])},
		},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestDispatchStartCommand(t *testing.T) {
	d, _, _, rec := newDispatcherFixture(t)

	d.Dispatch(context.Background(), commandUpdate(42, "/start"))
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "Welcome") {
		t.Errorf("expected welcome message, got %+v", last)
	}
	if last != nil && last.ChatID != "42" {
		t.Errorf("expected chat id 42, got %q", last.ChatID)
	}
}

func TestDispatchNewTripThenCancel(t *testing.T) {
	d, sm, st, rec := newDispatcherFixture(t)
	ctx := context.Background()

	d.Dispatch(ctx, commandUpdate(42, "/newtrip"))
	conv, _ := sm.Get(ctx, "42")
	if conv.State != flow.StateItinTitle {
		t.Fatalf("expected title state, got %q", conv.State)
	}
	d.Dispatch(ctx, textUpdate(42, "Berlin"))

	d.Dispatch(ctx, commandUpdate(42, "/cancel"))
	conv, _ = sm.Get(ctx, "42")
	if conv.State != models.StateIdle {
		t.Errorf("expected idle after cancel, got %q", conv.State)
	}
	itins, _ := st.ListItineraries("42")
	if len(itins) != 0 {
		t.Errorf("cancel must not persist anything, got %+v", itins)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "Cancelled") {
		t.Errorf("expected cancel confirmation, got %+v", last)
	}
}

func TestDispatchCancelWhenIdle(t *testing.T) {
	d, _, _, rec := newDispatcherFixture(t)

	d.Dispatch(context.Background(), commandUpdate(42, "/cancel"))
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "Nothing to cancel") {
		t.Errorf("expected nothing-to-cancel message, got %+v", last)
	}
}

func TestDispatchIdleTextShowsHelp(t *testing.T) {
	d, _, _, rec := newDispatcherFixture(t)

	d.Dispatch(context.Background(), textUpdate(42, "hello?"))
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "/newtrip") {
		t.Errorf("expected help text, got %+v", last)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _, _, rec := newDispatcherFixture(t)

	d.Dispatch(context.Background(), commandUpdate(42, "/frobnicate"))
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "don't know that command") {
		t.Errorf("expected unknown-command message, got %+v", last)
	}
}

func TestDispatchTextRoutesToActiveFlow(t *testing.T) {
	d, sm, _, _ := newDispatcherFixture(t)
	ctx := context.Background()

	d.Dispatch(ctx, commandUpdate(42, "/newtrip"))
	d.Dispatch(ctx, textUpdate(42, "Berlin Tech Week"))

	conv, _ := sm.Get(ctx, "42")
	if conv.State != flow.StateItinLocation {
		t.Errorf("expected location state after title, got %q", conv.State)
	}
}

func TestDispatchForwardInterruptsActiveFlow(t *testing.T) {
	d, sm, st, rec := newDispatcherFixture(t)
	ctx := context.Background()
	st.SaveContact(models.Contact{ID: "c1", UserID: "42", FirstName: "Alice", Handle: "@alice"})

	d.Dispatch(ctx, commandUpdate(42, "/newtrip"))

	fwd := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:        &tgbotapi.Chat{ID: 42},
		Text:        "great meeting you!",
		ForwardFrom: &tgbotapi.User{FirstName: "Alice", UserName: "alice"},
		ForwardDate: 1742032800,
	}}
	d.Dispatch(ctx, fwd)

	conv, _ := sm.Get(ctx, "42")
	if conv.State != flow.StateForwardContactChoice {
		t.Errorf("forward should interrupt the trip wizard, got %q", conv.State)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "already in your contacts") {
		t.Errorf("expected contact match message, got %+v", last)
	}
}

func TestDispatchHiddenSenderForward(t *testing.T) {
	d, sm, st, _ := newDispatcherFixture(t)
	ctx := context.Background()
	st.SaveContact(models.Contact{ID: "c1", UserID: "42", FirstName: "Bob", LastName: "Stone"})

	fwd := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:              &tgbotapi.Chat{ID: 42},
		Text:              "hi",
		ForwardSenderName: "Bob Stone",
		ForwardDate:       1742032800,
	}}
	d.Dispatch(ctx, fwd)

	conv, _ := sm.Get(ctx, "42")
	if conv.State != flow.StateForwardContactChoice {
		t.Errorf("hidden-sender forward should still match by name, got %q", conv.State)
	}
}

func TestDispatchCallbackCancel(t *testing.T) {
	d, sm, _, rec := newDispatcherFixture(t)
	ctx := context.Background()

	d.Dispatch(ctx, commandUpdate(42, "/newtrip"))
	d.Dispatch(ctx, callbackUpdate(42, "cnl:"))

	conv, _ := sm.Get(ctx, "42")
	if conv.State != models.StateIdle {
		t.Errorf("expected idle after cancel callback, got %q", conv.State)
	}
	if len(rec.Callbacks) != 1 {
		t.Errorf("callback not acknowledged: %+v", rec.Callbacks)
	}
}

func TestDispatchUnknownCallbackPrefixIgnored(t *testing.T) {
	d, _, _, rec := newDispatcherFixture(t)

	d.Dispatch(context.Background(), callbackUpdate(42, "zzz:boom"))
	if len(rec.Callbacks) != 1 {
		t.Errorf("callback should still be acknowledged: %+v", rec.Callbacks)
	}
	if len(rec.Messages) != 0 {
		t.Errorf("unknown prefix must not send messages: %+v", rec.Messages)
	}
}

func TestDispatchUnroutableStateResets(t *testing.T) {
	d, sm, _, rec := newDispatcherFixture(t)
	ctx := context.Background()

	sm.Set(ctx, "42", "legacy_state", nil)
	d.Dispatch(ctx, textUpdate(42, "hello"))

	conv, _ := sm.Get(ctx, "42")
	if conv.State != models.StateIdle {
		t.Errorf("expected reset to idle, got %q", conv.State)
	}
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "/newtrip") {
		t.Errorf("expected help text, got %+v", last)
	}
}

func TestDispatchTripsListing(t *testing.T) {
	d, _, st, rec := newDispatcherFixture(t)
	st.SaveItinerary(models.Itinerary{
		ID: "i1", UserID: "42", Title: "Berlin", Location: "Germany",
		StartDate: "2025-03-15", EndDate: "2025-03-20",
	})

	d.Dispatch(context.Background(), commandUpdate(42, "/trips"))
	last := rec.Last()
	if last == nil || !strings.Contains(last.Body, "Berlin") || !strings.Contains(last.Body, "0 events") {
		t.Errorf("expected trip listing, got %+v", last)
	}
}

func TestDispatchSkipRoutesByStatePrefix(t *testing.T) {
	d, sm, st, _ := newDispatcherFixture(t)
	ctx := context.Background()
	st.SaveItinerary(models.Itinerary{
		ID: "i1", UserID: "42", Title: "Berlin",
		StartDate: "2025-03-15", EndDate: "2025-03-20",
		Days: []models.Day{{Date: "2025-03-15"}},
	})

	d.Dispatch(ctx, commandUpdate(42, "/newevent"))
	d.Dispatch(ctx, callbackUpdate(42, "eit:i1"))
	d.Dispatch(ctx, callbackUpdate(42, "emn:"))
	d.Dispatch(ctx, textUpdate(42, "Kickoff"))
	d.Dispatch(ctx, textUpdate(42, "2025-03-15"))
	d.Dispatch(ctx, textUpdate(42, "09:00"))

	conv, _ := sm.Get(ctx, "42")
	if conv.State != flow.StateEventEndTime {
		t.Fatalf("expected end time prompt, got %q", conv.State)
	}
	d.Dispatch(ctx, callbackUpdate(42, "skp:"))
	conv, _ = sm.Get(ctx, "42")
	if conv.State != flow.StateEventLocation {
		t.Errorf("skip should advance to location, got %q", conv.State)
	}
}
