// Package messaging provides the Telegram implementation of the Service interface.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the subset of the Telegram client used by TelegramService.
// Narrowed for test doubles.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramService sends messages through the Telegram Bot API.
type TelegramService struct {
	api BotAPI
}

// NewTelegramService creates a TelegramService from a bot token.
func NewTelegramService(token string) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("TelegramService failed to initialize bot", "error", err)
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	slog.Info("TelegramService initialized", "bot_username", bot.Self.UserName)
	return &TelegramService{api: bot}, nil
}

// NewTelegramServiceWithAPI creates a TelegramService around an existing API
// client. Used by tests.
func NewTelegramServiceWithAPI(api BotAPI) *TelegramService {
	return &TelegramService{api: api}
}

// SendMessage sends a plain text message to a chat.
func (t *TelegramService) SendMessage(ctx context.Context, chatID string, body string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		slog.Error("TelegramService.SendMessage: invalid chat id", "error", err, "chatID", chatID)
		return err
	}
	msg := tgbotapi.NewMessage(id, body)
	if _, err := t.api.Send(msg); err != nil {
		slog.Error("TelegramService.SendMessage failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	slog.Debug("TelegramService.SendMessage succeeded", "chatID", chatID, "body_length", len(body))
	return nil
}

// SendMessageWithButtons sends a text message with an inline keyboard.
func (t *TelegramService) SendMessageWithButtons(ctx context.Context, chatID string, body string, rows [][]Button) error {
	id, err := parseChatID(chatID)
	if err != nil {
		slog.Error("TelegramService.SendMessageWithButtons: invalid chat id", "error", err, "chatID", chatID)
		return err
	}
	msg := tgbotapi.NewMessage(id, body)
	msg.ReplyMarkup = buildInlineKeyboard(rows)
	if _, err := t.api.Send(msg); err != nil {
		slog.Error("TelegramService.SendMessageWithButtons failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to send message with buttons: %w", err)
	}
	slog.Debug("TelegramService.SendMessageWithButtons succeeded", "chatID", chatID, "rows", len(rows))
	return nil
}

// AnswerCallback acknowledges a button press.
func (t *TelegramService) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := t.api.Request(cb); err != nil {
		slog.Error("TelegramService.AnswerCallback failed", "error", err, "callbackID", callbackID)
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}

func buildInlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var line []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboard = append(keyboard, line)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
