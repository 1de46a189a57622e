package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
	"relaybot/internal/persona"
	"relaybot/internal/search"
)

// stubSearcher answers every query with a fixed result set.
type stubSearcher struct {
	results []domain.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string) ([]domain.SearchResult, error) {
	return s.results, s.err
}

func (s *stubSearcher) Name() string { return "stub" }

// outboundSink collects messages delivered through the bus.
type outboundSink struct {
	mu   sync.Mutex
	msgs []domain.OutboundMessage
}

func (o *outboundSink) collect(msg domain.OutboundMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
}

func (o *outboundSink) all() []domain.OutboundMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.OutboundMessage, len(o.msgs))
	copy(out, o.msgs)
	return out
}

type dispatchFixture struct {
	disp     *Dispatcher
	bus      *bus.InMemoryBus
	sink     *outboundSink
	provider *fakeProvider
	sessions *SessionStore
}

func newDispatchFixture(t *testing.T, searcher domain.Searcher) *dispatchFixture {
	t.Helper()
	logger := testLogger()

	b := bus.New(16, logger)
	t.Cleanup(b.Close)
	sink := &outboundSink{}
	b.OnOutbound("slack", sink.collect)

	provider := &fakeProvider{replies: []string{"first reply", "second reply", "third reply"}}
	sessions := NewSessionStore(time.Minute)
	engine := NewEngine(provider, sessions, persona.Default(), logger)

	var gateway *search.Gateway
	if searcher != nil {
		gateway = search.NewGateway(searcher, 3, logger)
	}

	disp := NewDispatcher(DispatcherConfig{
		Bus:       b,
		Engine:    engine,
		Gateway:   gateway,
		Persona:   persona.Default(),
		BotUserID: "UBOT",
		Logger:    logger,
	})
	return &dispatchFixture{disp: disp, bus: b, sink: sink, provider: provider, sessions: sessions}
}

func dmEvent(text string) domain.Event {
	return domain.Event{
		Kind:        domain.EventMessage,
		ChannelID:   "D042",
		ChannelType: "im",
		UserID:      "U777",
		Text:        text,
		ClientMsgID: "cm-" + text,
		Timestamp:   time.Now(),
	}
}

func TestProcessDirectMessagePlainPath(t *testing.T) {
	f := newDispatchFixture(t, nil)

	f.disp.process(context.Background(), dmEvent("hello there"))

	msgs := f.sink.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	if msgs[0].ChannelID != "D042" || msgs[0].Text != "first reply" {
		t.Errorf("unexpected outbound: %+v", msgs[0])
	}
	if turns := f.sessions.History("D042:U777"); len(turns) != 2 {
		t.Errorf("transcript has %d turns, want 2", len(turns))
	}
}

func TestProcessIgnoresNonConversational(t *testing.T) {
	f := newDispatchFixture(t, nil)
	ctx := context.Background()

	ignored := []domain.Event{
		{Kind: domain.EventMessage, ChannelID: "C1", UserID: "U1", Text: "public chatter"},
		{Kind: domain.EventMessage, ChannelID: "D1", UserID: "UBOT", Text: "my own reply"},
		{Kind: domain.EventMessage, ChannelID: "D1", ChannelType: "im", UserID: "U1", Text: "edited", Subtype: "message_changed"},
		{Kind: domain.EventMessage, ChannelID: "D1", ChannelType: "im", UserID: "U1", Text: ""},
		{Kind: domain.EventMessage, ChannelID: "D1", ChannelType: "im", UserID: "", Text: "ghost"},
	}
	for _, ev := range ignored {
		f.disp.process(ctx, ev)
	}

	if msgs := f.sink.all(); len(msgs) != 0 {
		t.Errorf("ignored events must not produce replies, got %+v", msgs)
	}
}

func TestProcessMentionTriggersRetrieval(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{
		{Title: "Result", URL: "https://example.com", Content: "fresh facts"},
	}}
	f := newDispatchFixture(t, searcher)

	f.disp.process(context.Background(), domain.Event{
		Kind:        domain.EventMention,
		ChannelID:   "C100",
		UserID:      "U5",
		Text:        "latest news on Go",
		ClientMsgID: "ts-1",
	})

	msgs := f.sink.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	if msgs[0].Text != "first reply" {
		t.Errorf("unexpected reply: %q", msgs[0].Text)
	}
	// The retrieval path synthesizes the results into the user turn.
	turn := f.provider.requests[0].Messages[len(f.provider.requests[0].Messages)-1].Content
	if !strings.Contains(turn, "fresh facts") {
		t.Errorf("search results not threaded into the prompt:\n%s", turn)
	}
}

func TestProcessEmptySearchResultsFallsBack(t *testing.T) {
	f := newDispatchFixture(t, &stubSearcher{})

	f.disp.process(context.Background(), dmEvent("any latest updates?"))

	msgs := f.sink.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "rephrasing") {
		t.Errorf("expected the search fallback, got %q", msgs[0].Text)
	}
	if len(f.provider.requests) != 0 {
		t.Error("empty search results must not reach the model")
	}
	if turns := f.sessions.History("D042:U777"); len(turns) != 0 {
		t.Errorf("fallback must not advance the transcript, got %+v", turns)
	}
}

func TestProcessProviderFailureFallsBack(t *testing.T) {
	f := newDispatchFixture(t, nil)
	f.provider.err = errors.New("upstream down")

	f.disp.process(context.Background(), dmEvent("hello"))

	msgs := f.sink.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "try again") {
		t.Errorf("expected the generic fallback, got %q", msgs[0].Text)
	}
}

func TestProcessDropsDuplicateDeliveries(t *testing.T) {
	f := newDispatchFixture(t, nil)
	ctx := context.Background()

	ev := dmEvent("hello")
	f.disp.process(ctx, ev)
	f.disp.process(ctx, ev)

	if msgs := f.sink.all(); len(msgs) != 1 {
		t.Errorf("duplicate delivery must be dropped, got %d replies", len(msgs))
	}
}

func TestRunProcessesEventsFromBus(t *testing.T) {
	f := newDispatchFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.disp.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		f.bus.Publish(domain.Event{
			Kind:        domain.EventMessage,
			ChannelID:   fmt.Sprintf("D%d", i),
			ChannelType: "im",
			UserID:      "U1",
			Text:        "hi",
			ClientMsgID: fmt.Sprintf("cm-%d", i),
		})
	}

	deadline := time.After(2 * time.Second)
	for len(f.sink.all()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 3 replies arrived", len(f.sink.all()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancel")
	}
}

func TestRunSurvivesHandlerPanic(t *testing.T) {
	f := newDispatchFixture(t, nil)

	// A nil engine makes process panic; Run must recover and keep going.
	f.disp.engine = nil
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.disp.Run(ctx)
		close(done)
	}()

	f.bus.Publish(dmEvent("boom"))
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher died after a handler panic")
	}
}
