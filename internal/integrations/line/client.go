package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"line-flex-bridge/internal/integrations/paramstore"
)

const (
	defaultTimeout  = 10 * time.Second
	messageTypeText = "text"
)

// channelCredentials is the expected JSON shape stored in SSM for the LINE channel.
type channelCredentials struct {
	ChannelSecret      string `json:"channel_secret"`
	ChannelAccessToken string `json:"channel_access_token"`
}

// APIError is a non-2xx reply from the Messaging API.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

// Client talks to the LINE Messaging API through the official SDK.
type Client struct {
	endpoint   string
	httpClient *http.Client
	getter     paramstore.Getter
	paramName  string
}

type Option func(*Client)

// WithEndpoint points the client at another Messaging API host.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client whose channel access token is read from the
// JSON parameter paramName on each call. Pass a *paramstore.Cache to avoid
// repeated SSM round trips.
func NewClient(ps paramstore.Getter, paramName string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("line: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("line: credentials parameter name must not be empty")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		getter:     ps,
		paramName:  paramName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// api builds a Messaging API client bound to ctx. The SDK client carries its
// context as mutable state, so one is built per call.
func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	creds, err := fetchCredentials(ctx, c.getter, c.paramName)
	if err != nil {
		return nil, err
	}
	if creds.ChannelAccessToken == "" {
		return nil, errors.New("line: channel access token is empty")
	}
	opts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(c.httpClient)}
	if c.endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(c.endpoint))
	}
	api, err := messaging_api.NewMessagingApiAPI(creds.ChannelAccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("line: build messaging api client: %w", err)
	}
	return api.WithContext(ctx), nil
}

// DisplayName returns the profile display name of a user who has added the bot.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("line: user id is required")
	}
	api, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	res, profile, err := api.GetProfileWithHttpInfo(userID)
	if err != nil {
		return "", apiError("get profile", res, err)
	}
	return profile.DisplayName, nil
}

// Reply answers a webhook event using its one-shot reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("line: reply token is required")
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	res, _, err := api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	})
	if err != nil {
		return apiError("reply message", res, err)
	}
	return nil
}

// Push sends a standalone text message and returns LINE's request id. Each
// push carries a fresh retry key.
func (c *Client) Push(ctx context.Context, to, text string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("line: recipient is required")
	}
	api, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	res, _, err := api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	}, uuid.NewString())
	if err != nil {
		return "", apiError("push message", res, err)
	}
	return res.Header.Get("X-Line-Request-Id"), nil
}

// apiError keeps the upstream status when the SDK got a response at all.
func apiError(op string, res *http.Response, err error) error {
	if res != nil && res.StatusCode/100 != 2 {
		return &APIError{Op: op, StatusCode: res.StatusCode, Err: err}
	}
	return fmt.Errorf("line: %s: %w", op, err)
}

func fetchCredentials(ctx context.Context, getter paramstore.Getter, name string) (channelCredentials, error) {
	var creds channelCredentials
	if err := paramstore.GetJSON(ctx, getter, name, &creds); err != nil {
		return channelCredentials{}, fmt.Errorf("line: fetch channel credentials: %w", err)
	}
	return creds, nil
}
