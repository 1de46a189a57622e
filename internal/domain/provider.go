package domain

import "context"

// ChatProvider is the interface the conversation engine talks to.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Healthy(ctx context.Context) error
}

// StreamingChatProvider is an optional extension for providers that can
// deliver the reply as a sequence of incremental chunks. ChatStream must
// close out before returning, so callers can range over the channel.
type StreamingChatProvider interface {
	ChatProvider
	ChatStream(ctx context.Context, req ChatRequest, out chan<- StreamEvent) error
}

// StreamEventType classifies a streaming event.
type StreamEventType string

const (
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is a single chunk of a streamed model reply.
type StreamEvent struct {
	Type    StreamEventType
	Content string // token text or error message
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
