package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"relaybot/internal/domain"
	"relaybot/internal/persona"
)

// ErrEmptyReply is returned when the retrieval path yields no usable
// model output.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Engine composes the system prompt, the session transcript, and optional
// retrieval context, invokes the model, and maintains the transcript. It
// never talks to the channel itself; the raw reply goes back to the
// dispatcher.
type Engine struct {
	provider domain.ChatProvider
	sessions *SessionStore
	persona  *persona.Persona
	logger   *slog.Logger
}

func NewEngine(provider domain.ChatProvider, sessions *SessionStore, p *persona.Persona, logger *slog.Logger) *Engine {
	return &Engine{
		provider: provider,
		sessions: sessions,
		persona:  p,
		logger:   logger,
	}
}

// Respond handles the plain conversational path.
func (e *Engine) Respond(ctx context.Context, sessionKey, userText string) (string, error) {
	return e.respond(ctx, sessionKey, e.persona.SystemPrompt, userText, false)
}

// RespondWithSearch handles the retrieval-augmented path: the user query
// and the search results are synthesized into one turn under the
// summarization prompt. An empty model reply is treated as a failure.
func (e *Engine) RespondWithSearch(ctx context.Context, sessionKey, userText string, results []domain.SearchResult) (string, error) {
	return e.respond(ctx, sessionKey, e.persona.SearchPrompt, buildSearchTurn(userText, results), true)
}

func (e *Engine) respond(ctx context.Context, sessionKey, system, userTurn string, requireContent bool) (string, error) {
	history := e.sessions.History(sessionKey)

	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.Message{Role: "user", Content: userTurn})

	reply, err := e.invoke(ctx, domain.ChatRequest{Messages: msgs})
	if err != nil {
		return "", err
	}
	if requireContent && strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}

	// The transcript only advances on success, so a failed call leaves
	// the session exactly as it was.
	e.sessions.Append(sessionKey,
		domain.Message{Role: "user", Content: userTurn},
		domain.Message{Role: "assistant", Content: reply},
	)
	return reply, nil
}

// invoke runs the chat call, streaming when the provider supports it, and
// concatenates the chunks into one reply.
func (e *Engine) invoke(ctx context.Context, req domain.ChatRequest) (string, error) {
	sp, ok := e.provider.(domain.StreamingChatProvider)
	if !ok {
		resp, err := e.provider.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("chat: %w", err)
		}
		return resp.Content, nil
	}

	out := make(chan domain.StreamEvent, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sp.ChatStream(ctx, req, out)
	}()

	var sb strings.Builder
	for evt := range out {
		if evt.Type == domain.StreamToken {
			sb.WriteString(evt.Content)
		}
	}
	if err := <-errCh; err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	return sb.String(), nil
}

// buildSearchTurn renders the query plus its search results as one user
// turn of Title / URL / Content blocks.
func buildSearchTurn(query string, results []domain.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User query: %s\n\nSearch results:\n", query)
	for _, r := range results {
		fmt.Fprintf(&sb, "\nTitle: %s\nURL: %s\nContent: %s\n", r.Title, r.URL, r.Content)
	}
	return sb.String()
}
