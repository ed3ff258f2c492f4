package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"line-flex-bridge/internal/domain"
)

const (
	defaultClaimTTL    = 30 * time.Second
	claimKeyPrefix     = "conversation#"
	friendlyNamePrefix = "LINE with "
)

// ConversationPlatform is the agent-side capability the resolver and the
// inbound router need.
type ConversationPlatform interface {
	ListOpenConversations(ctx context.Context, sender string) ([]domain.Conversation, error)
	CreateConversation(ctx context.Context, in domain.ConversationSpec) (domain.Conversation, error)
	CreateSubscription(ctx context.Context, conversationID, callbackURL string) (domain.Subscription, error)
	SendMessage(ctx context.Context, conversationID, author, text string) (string, error)
}

// Claimer grants a short exclusive window on a key.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Resolution is the outcome of ResolveOrCreate. SubscriptionErr is a warning:
// the conversation is usable but agent replies may not reach the sender.
type Resolution struct {
	Conversation    domain.Conversation
	IsNew           bool
	Subscription    domain.Subscription
	SubscriptionErr error
}

type SessionResolver struct {
	platform ConversationPlatform
	claims   Claimer
	claimTTL time.Duration
	logger   *slog.Logger
}

type ResolverOption func(*SessionResolver)

// WithClaims guards subscription registration with an exclusive claim per
// conversation. A ttl of zero uses the default.
func WithClaims(c Claimer, ttl time.Duration) ResolverOption {
	return func(r *SessionResolver) {
		r.claims = c
		if ttl > 0 {
			r.claimTTL = ttl
		}
	}
}

func NewSessionResolver(platform ConversationPlatform, logger *slog.Logger, opts ...ResolverOption) (*SessionResolver, error) {
	if platform == nil {
		return nil, errors.New("usecase: conversation platform must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &SessionResolver{
		platform: platform,
		claimTTL: defaultClaimTTL,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveOrCreate finds or provisions the conversation for sender. The
// conversation create call is issued every time since the platform returns the
// open channel for a known identity. A subscription is only registered when no
// open conversation was listed beforehand and, with claims enabled, this call
// wins the claim on the created conversation.
func (r *SessionResolver) ResolveOrCreate(ctx context.Context, sender, displayName, callbackURL string) (Resolution, error) {
	open, err := r.platform.ListOpenConversations(ctx, sender)
	if err != nil {
		return Resolution{}, newError(ErrorUpstream, "twilio_channel_list_error", err)
	}
	conv, err := r.platform.CreateConversation(ctx, domain.ConversationSpec{
		Identity:     sender,
		DisplayName:  displayName,
		FriendlyName: friendlyNamePrefix + sender,
	})
	if err != nil {
		return Resolution{}, newError(ErrorUpstream, "twilio_channel_create_error", err)
	}
	isNew := len(open) == 0
	if isNew {
		isNew = r.claim(ctx, sender, conv.ID)
	}

	res := Resolution{Conversation: conv, IsNew: isNew}
	if !isNew {
		return res, nil
	}

	sub, err := r.platform.CreateSubscription(ctx, conv.ID, callbackURL)
	if err != nil {
		res.SubscriptionErr = newError(ErrorUpstream, "twilio_webhook_create_error", err)
		r.logger.Warn("subscription registration failed, agent replies will not be delivered",
			append([]any{"sender", sender, "conversation_sid", conv.ID}, errAttrs(err)...)...)
		return res, nil
	}
	res.Subscription = sub
	r.logger.Info("registered conversation webhook", "sender", sender, "conversation_sid", conv.ID, "webhook_sid", sub.ID)
	return res, nil
}

// claim reports whether this invocation should provision the new conversation.
// Without a claimer, or when the claim store fails, every caller provisions.
func (r *SessionResolver) claim(ctx context.Context, sender, conversationID string) bool {
	if r.claims == nil {
		return true
	}
	won, err := r.claims.Claim(ctx, claimKeyPrefix+conversationID, r.claimTTL)
	if err != nil {
		r.logger.Warn("provisioning claim failed, continuing unguarded",
			append([]any{"sender", sender, "conversation_sid", conversationID}, errAttrs(err)...)...)
		return true
	}
	if !won {
		r.logger.Info("provisioning already claimed by a concurrent delivery", "sender", sender, "conversation_sid", conversationID)
	}
	return won
}
