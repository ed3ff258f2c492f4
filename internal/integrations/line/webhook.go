package line

import (
	"encoding/json"
	"errors"
	"fmt"
)

// WebhookPayload is the body LINE posts to the webhook URL.
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

type WebhookEvent struct {
	// Destination is the bot user id the payload was addressed to.
	Destination    string          `json:"-"`
	Type           string          `json:"type"`
	ReplyToken     string          `json:"replyToken"`
	WebhookEventID string          `json:"webhookEventId"`
	Source         EventSource     `json:"source"`
	Message        *WebhookMessage `json:"message"`
}

type EventSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type WebhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

const eventTypeMessage = "message"

// IsText reports whether the event carries a plain text message.
func (e WebhookEvent) IsText() bool {
	return e.Type == eventTypeMessage && e.Message != nil && e.Message.Type == messageTypeText
}

// FirstEvent decodes body and returns its first event. LINE delivers one event
// per request in practice; later events in a batch are not returned.
func FirstEvent(body []byte) (WebhookEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("line: decode webhook: %w", err)
	}
	if len(payload.Events) == 0 {
		return WebhookEvent{}, errors.New("line: webhook has no events")
	}
	ev := payload.Events[0]
	ev.Destination = payload.Destination
	if ev.Source.UserID == "" {
		return WebhookEvent{}, errors.New("line: event source has no user id")
	}
	if ev.Type == eventTypeMessage && ev.Message == nil {
		return WebhookEvent{}, errors.New("line: message event has no message")
	}
	return ev, nil
}
