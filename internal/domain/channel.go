package domain

import "context"

// Channel is a chat-platform adapter. It feeds inbound events to the bus
// and registers an outbound handler to deliver replies.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
}
