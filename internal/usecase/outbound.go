package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"line-flex-bridge/internal/domain"
	"line-flex-bridge/internal/integrations/twilio"
)

type RequestValidator interface {
	Verify(ctx context.Context, rawURL string, params url.Values, signature string) (bool, error)
}

type ConversationLookup interface {
	FetchConversation(ctx context.Context, conversationID string) (domain.Conversation, error)
}

type Pusher interface {
	Push(ctx context.Context, to, text string) (string, error)
}

type OutboundRequest struct {
	Body          string
	Signature     string
	URL           string
	CorrelationID string
}

type OutboundRouter struct {
	validator     RequestValidator
	conversations ConversationLookup
	pusher        Pusher
	logger        *slog.Logger
}

func NewOutboundRouter(v RequestValidator, conversations ConversationLookup, p Pusher, logger *slog.Logger) (*OutboundRouter, error) {
	if v == nil {
		return nil, errors.New("usecase: request validator must not be nil")
	}
	if conversations == nil {
		return nil, errors.New("usecase: conversation lookup must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: pusher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboundRouter{validator: v, conversations: conversations, pusher: p, logger: logger}, nil
}

// Handle delivers an agent message from a Flex channel webhook to the LINE
// user the channel belongs to. Unsigned requests and messages the agent did not
// write are answered with 401 and have no side effects.
func (r *OutboundRouter) Handle(ctx context.Context, req OutboundRequest) (int, error) {
	logger := r.logger.With("correlation_id", req.CorrelationID)

	ev, params, err := twilio.ParseMessageEvent(req.Body)
	if err != nil {
		logger.Warn("rejected twilio webhook: undecodable body")
		return http.StatusUnauthorized, nil
	}
	ok, err := r.validator.Verify(ctx, req.URL, params, req.Signature)
	if err != nil {
		return http.StatusInternalServerError, newError(ErrorInternal, "twilio_credentials_load_error", err)
	}
	if !ok {
		logger.Warn("rejected twilio webhook: signature mismatch", "url", req.URL)
		return http.StatusUnauthorized, nil
	}
	logger = logger.With("event_type", ev.EventType)
	if !ev.FromAgent() {
		logger.Info("ignoring message not written by an agent", "source", ev.Source, "conversation_sid", ev.ConversationID)
		return http.StatusUnauthorized, nil
	}

	msg := domain.OutboundMessage{ConversationID: ev.ConversationID, Author: ev.Author, Text: ev.Body}
	if strings.TrimSpace(msg.ConversationID) == "" {
		return r.fail(logger, "agent message has no channel", newError(ErrorMalformedPayload, "twilio_webhook_missing_channel", nil))
	}
	logger = logger.With("conversation_sid", msg.ConversationID)

	conv, err := r.conversations.FetchConversation(ctx, msg.ConversationID)
	if err != nil {
		return r.fail(logger, "fetch conversation failed", newError(ErrorUpstream, "twilio_channel_fetch_error", err))
	}
	sender := conv.Attributes.From
	if strings.TrimSpace(sender) == "" {
		return r.fail(logger, "conversation has no sender", newError(ErrorMalformedPayload, "twilio_channel_missing_sender", nil))
	}
	logger = logger.With("sender", sender)

	requestID, err := r.pusher.Push(ctx, sender, msg.Text)
	if err != nil {
		return r.fail(logger, "push to line failed", newError(ErrorUpstream, "line_push_error", err))
	}
	logger.Info("delivered agent message", "author", msg.Author, "line_request_id", requestID)
	return http.StatusOK, nil
}

func (r *OutboundRouter) fail(logger *slog.Logger, msg string, err error) (int, error) {
	logger.Error(msg, errAttrs(err)...)
	return http.StatusInternalServerError, err
}
