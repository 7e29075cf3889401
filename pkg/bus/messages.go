package bus

import "time"

// InboundMessage is a user message as delivered by a channel, before
// debouncing. Content is the raw text with any bot mention stripped.
type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	IsMention  bool
	ReceivedAt time.Time
	Metadata   map[string]string
}

// OutboundMessage is a reply the pipeline wants delivered to a chat.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

type MessageHandler func(msg InboundMessage)
