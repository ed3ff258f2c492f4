package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	twiliosdk "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	chat "github.com/twilio/twilio-go/rest/chat/v2"
	flex "github.com/twilio/twilio-go/rest/flex/v1"

	"line-flex-bridge/internal/domain"
	"line-flex-bridge/internal/integrations/paramstore"
)

const (
	defaultTimeout = 10 * time.Second
	listPageSize   = 100

	// FilterMessageSent fires the channel webhook when a member posts a message.
	FilterMessageSent = "onMessageSent"
)

// credentials is the expected JSON shape stored in SSM for the Twilio account.
type credentials struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
}

// APIError is an error response from a Twilio REST API.
type APIError struct {
	Op  string
	Err *twclient.TwilioRestError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: %s: %s", e.Op, e.Err.Error())
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) HTTPStatusCode() int { return e.Err.Status }

// Client wraps the Flex channel and Programmable Chat APIs for one chat service.
type Client struct {
	flexFlowSID    string
	chatServiceSID string
	httpClient     *http.Client
	getter         paramstore.Getter
	paramName      string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client scoped to chatServiceSID. Account credentials are
// read from the JSON parameter paramName on each call.
func NewClient(ps paramstore.Getter, paramName, flexFlowSID, chatServiceSID string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("twilio: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("twilio: credentials parameter name must not be empty")
	}
	chatServiceSID = strings.TrimSpace(chatServiceSID)
	if chatServiceSID == "" {
		return nil, errors.New("twilio: chat service sid must not be empty")
	}
	c := &Client{
		flexFlowSID:    strings.TrimSpace(flexFlowSID),
		chatServiceSID: chatServiceSID,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		getter:         ps,
		paramName:      paramName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// rest builds an SDK client with the current account credentials whose
// requests are bound to ctx.
func (c *Client) rest(ctx context.Context) (*twiliosdk.RestClient, error) {
	creds, err := fetchCredentials(ctx, c.getter, c.paramName)
	if err != nil {
		return nil, err
	}
	if creds.AccountSID == "" || creds.AuthToken == "" {
		return nil, errors.New("twilio: account sid and auth token are required")
	}
	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc := *c.httpClient
	hc.Transport = contextTransport{ctx: ctx, next: next}

	base := &twclient.Client{
		Credentials: twclient.NewCredentials(creds.AccountSID, creds.AuthToken),
		HTTPClient:  &hc,
	}
	base.SetAccountSid(creds.AccountSID)
	return twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{Client: base}), nil
}

// contextTransport attaches ctx to requests the SDK builds without one.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

// ListOpenConversations lists every channel of the chat service, following
// pagination, and keeps the ones still open for sender. Listing is scoped to
// the configured service so channels of other services never match.
func (c *Client) ListOpenConversations(ctx context.Context, sender string) ([]domain.Conversation, error) {
	rc, err := c.rest(ctx)
	if err != nil {
		return nil, err
	}
	channels, err := rc.ChatV2.ListChannel(c.chatServiceSID, (&chat.ListChannelParams{}).SetPageSize(listPageSize))
	if err != nil {
		return nil, apiError("list channels", err)
	}
	var open []domain.Conversation
	for _, ch := range channels {
		conv, ok := toConversation(ch)
		if ok && conv.Attributes.OpenFor(sender) {
			open = append(open, conv)
		}
	}
	return open, nil
}

// FetchConversation returns a single channel with its decoded attributes.
func (c *Client) FetchConversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return domain.Conversation{}, errors.New("twilio: channel sid is required")
	}
	rc, err := c.rest(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}
	ch, err := rc.ChatV2.FetchChannel(c.chatServiceSID, conversationID)
	if err != nil {
		return domain.Conversation{}, apiError("fetch channel", err)
	}
	conv, ok := toConversation(*ch)
	if !ok {
		return domain.Conversation{}, fmt.Errorf("twilio: channel %s has malformed attributes", conv.ID)
	}
	return conv, nil
}

// CreateConversation creates a Flex chat channel for the identity. Flex returns
// the existing channel when one is already open for the identity.
func (c *Client) CreateConversation(ctx context.Context, in domain.ConversationSpec) (domain.Conversation, error) {
	if c.flexFlowSID == "" {
		return domain.Conversation{}, errors.New("twilio: flex flow sid is not configured")
	}
	if strings.TrimSpace(in.Identity) == "" {
		return domain.Conversation{}, errors.New("twilio: identity is required")
	}
	rc, err := c.rest(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}
	params := &flex.CreateChannelParams{}
	params.SetFlexFlowSid(c.flexFlowSID)
	params.SetIdentity(in.Identity)
	params.SetChatUserFriendlyName(in.DisplayName)
	params.SetChatFriendlyName(in.FriendlyName)
	params.SetTarget(in.Identity)

	ch, err := rc.FlexV1.CreateChannel(params)
	if err != nil {
		return domain.Conversation{}, apiError("create flex channel", err)
	}
	if ch.Sid == nil || *ch.Sid == "" {
		return domain.Conversation{}, errors.New("twilio: create flex channel: response has no sid")
	}
	return domain.Conversation{ID: *ch.Sid}, nil
}

// CreateSubscription registers a webhook on the channel that fires only when a
// message is sent on it.
func (c *Client) CreateSubscription(ctx context.Context, conversationID, callbackURL string) (domain.Subscription, error) {
	if strings.TrimSpace(conversationID) == "" {
		return domain.Subscription{}, errors.New("twilio: channel sid is required")
	}
	if strings.TrimSpace(callbackURL) == "" {
		return domain.Subscription{}, errors.New("twilio: callback url is required")
	}
	rc, err := c.rest(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	params := &chat.CreateChannelWebhookParams{}
	params.SetType("webhook")
	params.SetConfigurationMethod(http.MethodPost)
	params.SetConfigurationUrl(callbackURL)
	params.SetConfigurationFilters([]string{FilterMessageSent})

	wh, err := rc.ChatV2.CreateChannelWebhook(c.chatServiceSID, conversationID, params)
	if err != nil {
		return domain.Subscription{}, apiError("create channel webhook", err)
	}
	return domain.Subscription{ID: deref(wh.Sid), ConversationID: conversationID, CallbackURL: callbackURL}, nil
}

// SendMessage posts text on the channel as author, tagged with the bridge
// origin so the outbound webhook can recognise it.
func (c *Client) SendMessage(ctx context.Context, conversationID, author, text string) (string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", errors.New("twilio: channel sid is required")
	}
	rc, err := c.rest(ctx)
	if err != nil {
		return "", err
	}
	params := &chat.CreateMessageParams{}
	params.SetXTwilioWebhookEnabled("true")
	params.SetBody(text)
	params.SetFrom(author)
	params.SetAttributes(bridgeAttributes)

	msg, err := rc.ChatV2.CreateMessage(c.chatServiceSID, conversationID, params)
	if err != nil {
		return "", apiError("create channel message", err)
	}
	return deref(msg.Sid), nil
}

// toConversation decodes the channel attributes. Channels whose attributes are
// not JSON are reported as not ok.
func toConversation(ch chat.ChatV2Channel) (domain.Conversation, bool) {
	conv := domain.Conversation{ID: deref(ch.Sid)}
	raw := strings.TrimSpace(deref(ch.Attributes))
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &conv.Attributes); err != nil {
			return conv, false
		}
	}
	return conv, true
}

func apiError(op string, err error) error {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &APIError{Op: op, Err: restErr}
	}
	return fmt.Errorf("twilio: %s: %w", op, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fetchCredentials(ctx context.Context, getter paramstore.Getter, name string) (credentials, error) {
	var creds credentials
	if err := paramstore.GetJSON(ctx, getter, name, &creds); err != nil {
		return credentials{}, fmt.Errorf("twilio: fetch credentials: %w", err)
	}
	return creds, nil
}
