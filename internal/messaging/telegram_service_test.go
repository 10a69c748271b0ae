package messaging

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeBotAPI captures outbound Chattables.
type fakeBotAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestTelegramServiceSendMessage(t *testing.T) {
	api := &fakeBotAPI{}
	svc := NewTelegramServiceWithAPI(api)

	if err := svc.SendMessage(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(api.sent))
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable type %T", api.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "hello" {
		t.Errorf("message wrong: %+v", msg)
	}
}

func TestTelegramServiceSendMessageWithButtons(t *testing.T) {
	api := &fakeBotAPI{}
	svc := NewTelegramServiceWithAPI(api)

	rows := [][]Button{
		{{Label: "Yes", Data: "yes:"}, {Label: "No", Data: "no:"}},
		{{Label: "Cancel", Data: "cnl:"}},
	}
	if err := svc.SendMessageWithButtons(context.Background(), "42", "pick one", rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("unexpected markup type %T", msg.ReplyMarkup)
	}
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard layout wrong: %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.Text != "Yes" || btn.CallbackData == nil || *btn.CallbackData != "yes:" {
		t.Errorf("button wrong: %+v", btn)
	}
}

func TestTelegramServiceRejectsBadChatID(t *testing.T) {
	svc := NewTelegramServiceWithAPI(&fakeBotAPI{})
	if err := svc.SendMessage(context.Background(), "not-a-number", "hello"); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
}

func TestTelegramServiceAnswerCallback(t *testing.T) {
	api := &fakeBotAPI{}
	svc := NewTelegramServiceWithAPI(api)

	if err := svc.AnswerCallback(context.Background(), "cb1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.requested) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.requested))
	}
	cb, ok := api.requested[0].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("unexpected chattable type %T", api.requested[0])
	}
	if cb.CallbackQueryID != "cb1" {
		t.Errorf("callback id wrong: %+v", cb)
	}
}
