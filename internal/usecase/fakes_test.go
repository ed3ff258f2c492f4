package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"line-flex-bridge/internal/domain"
)

const (
	goodSignature = "good-signature"
	callbackURL   = "https://abc.execute-api.test/prod/outbound"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger captures log output for assertions on warnings.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, nil)), buf
}

type sentMessage struct {
	conversationID string
	author         string
	text           string
}

// fakePlatform keeps channels in memory and mimics Flex returning the open
// channel when create is called again for the same identity.
type fakePlatform struct {
	mu         sync.Mutex
	convs      map[string]*domain.Conversation
	byIdentity map[string]string
	subs       []domain.Subscription
	sent       []sentMessage
	creates    int
	lists      int
	nextID     int

	listErr   error
	createErr error
	subErr    error
	sendErr   error
	fetchErr  error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		convs:      map[string]*domain.Conversation{},
		byIdentity: map[string]string{},
	}
}

func (f *fakePlatform) ListOpenConversations(_ context.Context, sender string) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Conversation
	for _, c := range f.convs {
		if c.Attributes.OpenFor(sender) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakePlatform) CreateConversation(_ context.Context, in domain.ConversationSpec) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return domain.Conversation{}, f.createErr
	}
	if id, ok := f.byIdentity[in.Identity]; ok && f.convs[id].Attributes.Status != domain.StatusInactive {
		return *f.convs[id], nil
	}
	f.nextID++
	c := &domain.Conversation{
		ID:         fmt.Sprintf("CH%d", f.nextID),
		Attributes: domain.Attributes{From: in.Identity, Status: "ACTIVE"},
	}
	f.convs[c.ID] = c
	f.byIdentity[in.Identity] = c.ID
	return *c, nil
}

func (f *fakePlatform) CreateSubscription(_ context.Context, conversationID, callbackURL string) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return domain.Subscription{}, f.subErr
	}
	sub := domain.Subscription{ID: fmt.Sprintf("WH%d", len(f.subs)+1), ConversationID: conversationID, CallbackURL: callbackURL}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakePlatform) SendMessage(_ context.Context, conversationID, author, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentMessage{conversationID: conversationID, author: author, text: text})
	return fmt.Sprintf("IM%d", len(f.sent)), nil
}

func (f *fakePlatform) FetchConversation(_ context.Context, conversationID string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return domain.Conversation{}, f.fetchErr
	}
	c, ok := f.convs[conversationID]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("channel %s not found", conversationID)
	}
	return *c, nil
}

// closeFor marks the sender's channel inactive, as an agent ending the chat does.
func (f *fakePlatform) closeFor(sender string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byIdentity[sender]; ok {
		f.convs[id].Attributes.Status = domain.StatusInactive
	}
}

func (f *fakePlatform) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists + f.creates + len(f.subs) + len(f.sent)
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(_ context.Context, _ []byte, signature string) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return signature == goodSignature, nil
}

type reply struct {
	token string
	text  string
}

type push struct {
	to   string
	text string
}

type fakeLine struct {
	mu         sync.Mutex
	names      map[string]string
	profileErr error
	replyErr   error
	pushErr    error
	replies    []reply
	pushes     []push
	lookups    int
}

func newFakeLine() *fakeLine {
	return &fakeLine{names: map[string]string{"U1": "Alice", "U2": "Bob"}}
}

func (l *fakeLine) DisplayName(_ context.Context, userID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	if l.profileErr != nil {
		return "", l.profileErr
	}
	return l.names[userID], nil
}

func (l *fakeLine) Reply(_ context.Context, replyToken, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replyErr != nil {
		return l.replyErr
	}
	l.replies = append(l.replies, reply{token: replyToken, text: text})
	return nil
}

func (l *fakeLine) Push(_ context.Context, to, text string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pushErr != nil {
		return "", l.pushErr
	}
	l.pushes = append(l.pushes, push{to: to, text: text})
	return "req-1", nil
}

type fakeValidator struct {
	err   error
	calls int
}

func (v *fakeValidator) Verify(_ context.Context, rawURL string, _ url.Values, signature string) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return rawURL == callbackURL && signature == goodSignature, nil
}

type fakeClaimer struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
	keys []string
	ttls []time.Duration
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{held: map[string]bool{}}
}

func (c *fakeClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.ttls = append(c.ttls, ttl)
	if c.err != nil {
		return false, c.err
	}
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

func lineBody(sender, text, replyToken string) []byte {
	return []byte(fmt.Sprintf(`{"destination":"Ubot","events":[{"type":"message","replyToken":%q,"webhookEventId":"01HEV1","source":{"type":"user","userId":%q},"message":{"id":"1","type":"text","text":%q}}]}`, replyToken, sender, text))
}

func agentBody(conversationID, text, source, attributes string) string {
	v := url.Values{}
	v.Set("EventType", "onMessageSent")
	v.Set("ChannelSid", conversationID)
	v.Set("Body", text)
	v.Set("Source", source)
	v.Set("From", "agent_jane")
	if attributes != "" {
		v.Set("Attributes", attributes)
	}
	return v.Encode()
}
