// Package messaging provides the outbound message delivery abstraction for Tripmate.
//
// Flows call the Service to send text and inline button layouts and to
// acknowledge button presses. Delivery is fire-and-forget from the flows'
// perspective: a failed send is logged by the implementation and never stops
// state progression. The conversation store, not delivery confirmation, is
// the source of truth.
package messaging

import "context"

// Button is one inline button: a user-visible label and the callback token
// delivered back to the webhook when pressed.
type Button struct {
	Label string
	Data  string
}

// Row builds a single-row button layout.
func Row(buttons ...Button) [][]Button {
	return [][]Button{buttons}
}

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// SendMessage sends a plain text message to a chat.
	SendMessage(ctx context.Context, chatID string, body string) error

	// SendMessageWithButtons sends a text message with an inline button layout.
	SendMessageWithButtons(ctx context.Context, chatID string, body string, rows [][]Button) error

	// AnswerCallback acknowledges an interactive button press so the client
	// stops showing a progress indicator. Text is optional toast content.
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
