package domain

import "strings"

// StatusInactive is set on a channel by Flex once an agent ends the conversation.
const StatusInactive = "INACTIVE"

// Attributes is the small key/value record stored on a Flex chat channel.
type Attributes struct {
	From   string `json:"from"`
	Status string `json:"status"`
}

// OpenFor reports whether the attributes describe a channel that is still open
// for the given LINE user.
func (a Attributes) OpenFor(sender string) bool {
	if sender == "" {
		return false
	}
	return strings.Contains(a.From, sender) && a.Status != StatusInactive
}

// Conversation is a Channel-B chat channel routed to one LINE user.
type Conversation struct {
	ID         string
	Attributes Attributes
}

// ConversationSpec describes the channel to create (or re-fetch) for a sender.
type ConversationSpec struct {
	Identity     string
	DisplayName  string
	FriendlyName string
}

// Subscription is a webhook registered on a single conversation.
type Subscription struct {
	ID             string
	ConversationID string
	CallbackURL    string
}
