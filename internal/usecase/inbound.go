package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"line-flex-bridge/internal/domain"
	"line-flex-bridge/internal/integrations/line"
)

const DefaultAckText = "We got your message!"

type BodyVerifier interface {
	Verify(ctx context.Context, body []byte, signature string) (bool, error)
}

// LineResponder is the end-user channel surface the inbound router uses.
type LineResponder interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	Reply(ctx context.Context, replyToken, text string) error
}

type InboundRequest struct {
	Body          []byte
	Signature     string
	CallbackURL   string
	CorrelationID string
}

type InboundRouter struct {
	verifier BodyVerifier
	line     LineResponder
	resolver *SessionResolver
	platform ConversationPlatform
	ackText  string
	logger   *slog.Logger
}

func NewInboundRouter(v BodyVerifier, l LineResponder, resolver *SessionResolver, platform ConversationPlatform, ackText string, logger *slog.Logger) (*InboundRouter, error) {
	if v == nil {
		return nil, errors.New("usecase: signature verifier must not be nil")
	}
	if l == nil {
		return nil, errors.New("usecase: line client must not be nil")
	}
	if resolver == nil {
		return nil, errors.New("usecase: session resolver must not be nil")
	}
	if platform == nil {
		return nil, errors.New("usecase: conversation platform must not be nil")
	}
	if strings.TrimSpace(ackText) == "" {
		ackText = DefaultAckText
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InboundRouter{
		verifier: v,
		line:     l,
		resolver: resolver,
		platform: platform,
		ackText:  ackText,
		logger:   logger,
	}, nil
}

// Handle routes one LINE webhook delivery into Flex. It returns 401 without
// touching the payload when the signature does not match. Any error after
// that is returned for the caller to surface as an invocation failure.
func (r *InboundRouter) Handle(ctx context.Context, req InboundRequest) (int, error) {
	logger := r.logger.With("correlation_id", req.CorrelationID)

	ok, err := r.verifier.Verify(ctx, req.Body, req.Signature)
	if err != nil {
		return http.StatusInternalServerError, newError(ErrorInternal, "line_secret_load_error", err)
	}
	if !ok {
		logger.Warn("rejected line webhook: signature mismatch")
		return http.StatusUnauthorized, nil
	}

	ev, err := line.FirstEvent(req.Body)
	if err != nil {
		return http.StatusInternalServerError, newError(ErrorMalformedPayload, "line_webhook_malformed", err)
	}
	logger = logger.With("destination", ev.Destination, "webhook_event_id", ev.WebhookEventID)
	if !ev.IsText() {
		logger.Debug("ignoring non-text line event", "event_type", ev.Type, "sender", ev.Source.UserID)
		return http.StatusOK, nil
	}
	msg := domain.InboundMessage{
		Sender:     ev.Source.UserID,
		Text:       ev.Message.Text,
		ReplyToken: ev.ReplyToken,
	}
	logger = logger.With("sender", msg.Sender)

	displayName, err := r.line.DisplayName(ctx, msg.Sender)
	if err != nil {
		return r.fail(logger, "line profile lookup failed", newError(ErrorUpstream, "line_profile_error", err))
	}

	res, err := r.resolver.ResolveOrCreate(ctx, msg.Sender, displayName, req.CallbackURL)
	if err != nil {
		return r.fail(logger, "resolve conversation failed", err)
	}
	logger = logger.With("conversation_sid", res.Conversation.ID)

	if _, err := r.platform.SendMessage(ctx, res.Conversation.ID, msg.Sender, msg.Text); err != nil {
		return r.fail(logger, "forward message to flex failed", newError(ErrorUpstream, "twilio_message_send_error", err))
	}

	if res.IsNew {
		if err := r.line.Reply(ctx, msg.ReplyToken, r.ackText); err != nil {
			return r.fail(logger, "acknowledgement reply failed", newError(ErrorUpstream, "line_reply_error", err))
		}
	}

	logger.Info("routed line message", "new_conversation", res.IsNew, "subscription_warning", res.SubscriptionErr != nil)
	return http.StatusOK, nil
}

func (r *InboundRouter) fail(logger *slog.Logger, msg string, err error) (int, error) {
	logger.Error(msg, errAttrs(err)...)
	return http.StatusInternalServerError, err
}
