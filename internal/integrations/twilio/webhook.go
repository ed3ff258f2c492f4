package twilio

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// SourceSDK marks messages posted from the Flex agent UI.
	SourceSDK = "SDK"

	bridgeOrigin = "line-bridge"
	// bridgeAttributes is attached to every message the bridge injects.
	bridgeAttributes = `{"origin":"` + bridgeOrigin + `"}`
)

// MessageEvent is the subset of a channel webhook the bridge routes on.
type MessageEvent struct {
	EventType      string
	ConversationID string
	Body           string
	Source         string
	Author         string
	Attributes     string
}

// ParseMessageEvent decodes a form-encoded channel webhook body. The raw params
// are returned as well because signature validation needs all of them.
func ParseMessageEvent(body string) (MessageEvent, url.Values, error) {
	params, err := url.ParseQuery(body)
	if err != nil {
		return MessageEvent{}, nil, fmt.Errorf("twilio: decode webhook body: %w", err)
	}
	ev := MessageEvent{
		EventType:      params.Get("EventType"),
		ConversationID: firstNonEmpty(params.Get("ChannelSid"), params.Get("ConversationSid")),
		Body:           params.Get("Body"),
		Source:         params.Get("Source"),
		Author:         firstNonEmpty(params.Get("From"), params.Get("Author")),
		Attributes:     params.Get("Attributes"),
	}
	return ev, params, nil
}

// FromAgent reports whether the message was written by an agent, as opposed
// to an echo of a message the bridge injected itself.
func (e MessageEvent) FromAgent() bool {
	return e.Source == SourceSDK && !e.fromBridge()
}

func (e MessageEvent) fromBridge() bool {
	if strings.TrimSpace(e.Attributes) == "" {
		return false
	}
	var attrs struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return false
	}
	return attrs.Origin == bridgeOrigin
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
