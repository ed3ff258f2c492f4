package domain

// InboundMessage is a text message received from a LINE user.
type InboundMessage struct {
	Sender     string
	Text       string
	ReplyToken string
}

// OutboundMessage is an agent reply posted on a Flex chat channel.
type OutboundMessage struct {
	ConversationID string
	Author         string
	Text           string
}
