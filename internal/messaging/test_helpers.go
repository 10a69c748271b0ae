package messaging

import (
	"context"
	"sync"
)

// SentMessage records one outbound message captured by the Recorder.
type SentMessage struct {
	ChatID  string
	Body    string
	Buttons [][]Button
}

// Recorder is a Service that captures sends for assertions in tests.
type Recorder struct {
	mu        sync.Mutex
	Messages  []SentMessage
	Callbacks []string
	FailSends bool
}

// NewRecorder creates an empty recording messenger.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SendMessage records a plain message.
func (r *Recorder) SendMessage(ctx context.Context, chatID string, body string) error {
	return r.SendMessageWithButtons(ctx, chatID, body, nil)
}

// SendMessageWithButtons records a message with its button layout.
func (r *Recorder) SendMessageWithButtons(ctx context.Context, chatID string, body string, rows [][]Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSends {
		return context.Canceled
	}
	r.Messages = append(r.Messages, SentMessage{ChatID: chatID, Body: body, Buttons: rows})
	return nil
}

// AnswerCallback records a callback acknowledgment.
func (r *Recorder) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Callbacks = append(r.Callbacks, callbackID)
	return nil
}

// Last returns the most recent captured message, or nil when none was sent.
func (r *Recorder) Last() *SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return nil
	}
	return &r.Messages[len(r.Messages)-1]
}
