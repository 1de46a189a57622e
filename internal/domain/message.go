package domain

import "time"

// EventKind classifies an inbound platform event.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventMention EventKind = "mention"
)

// Event is a single inbound chat event as delivered by the platform webhook.
// It is immutable once published to the bus.
type Event struct {
	Kind        EventKind
	ChannelID   string
	ChannelType string // "im", "channel", "group" as reported by the platform
	UserID      string
	Text        string
	Subtype     string // non-empty for system/edited messages
	ClientMsgID string // optional client-side message ID, used for dedupe
	Timestamp   time.Time
}

// OutboundMessage is a reply headed back to the originating channel.
type OutboundMessage struct {
	Channel   string // delivery channel name, e.g. "slack"
	ChannelID string
	Text      string
	Mrkdwn    bool
}

// Message is one role-tagged turn in a conversation transcript.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// SearchResult is one normalized web search hit. At most a small fixed
// number are retained per query; results are never persisted.
type SearchResult struct {
	Title   string
	URL     string
	Content string
}
