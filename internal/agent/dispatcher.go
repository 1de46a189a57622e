package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"relaybot/internal/audit"
	"relaybot/internal/domain"
	"relaybot/internal/markup"
	"relaybot/internal/metrics"
	"relaybot/internal/persona"
	"relaybot/internal/search"
)

const defaultConcurrency = 4

var errNoSearchResults = errors.New("no search results")

// Dispatcher consumes inbound events from the bus, applies the relay's
// accept rules, and drives the conversation engine. Each event runs on
// its own goroutine bounded by a semaphore; nothing that happens there
// ever reaches the webhook handler.
type Dispatcher struct {
	bus         domain.MessageBus
	engine      *Engine
	gateway     *search.Gateway
	router      *Router
	dedupe      *DedupeSet
	audit       *audit.Store
	persona     *persona.Persona
	botUserID   string
	channelName string
	concurrency int
	logger      *slog.Logger

	received      *metrics.Counter
	ignored       *metrics.Counter
	deduped       *metrics.Counter
	plainHits     *metrics.Counter
	retrievalHits *metrics.Counter
	replies       *metrics.Counter
	fallbacks     *metrics.Counter
}

// DispatcherConfig holds the dispatcher's collaborators. Gateway and
// Audit may be nil: without a gateway every message takes the plain path,
// and without an audit store nothing is recorded.
type DispatcherConfig struct {
	Bus         domain.MessageBus
	Engine      *Engine
	Gateway     *search.Gateway
	Router      *Router
	Audit       *audit.Store
	Persona     *persona.Persona
	Metrics     *metrics.Registry
	BotUserID   string
	ChannelName string
	Concurrency int
	Logger      *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Router == nil {
		cfg.Router = NewRouter(nil)
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = "slack"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRegistry()
	}
	return &Dispatcher{
		bus:         cfg.Bus,
		engine:      cfg.Engine,
		gateway:     cfg.Gateway,
		router:      cfg.Router,
		dedupe:      NewDedupeSet(),
		audit:       cfg.Audit,
		persona:     cfg.Persona,
		botUserID:   cfg.BotUserID,
		channelName: cfg.ChannelName,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,

		received:      cfg.Metrics.Counter("relay_events_received_total", "inbound events taken off the bus"),
		ignored:       cfg.Metrics.Counter("relay_events_ignored_total", "events rejected by the accept rules"),
		deduped:       cfg.Metrics.Counter("relay_events_deduped_total", "duplicate deliveries dropped"),
		plainHits:     cfg.Metrics.Counter("relay_branch_plain_total", "events routed to the plain path"),
		retrievalHits: cfg.Metrics.Counter("relay_branch_retrieval_total", "events routed to the retrieval path"),
		replies:       cfg.Metrics.Counter("relay_replies_total", "successful replies sent"),
		fallbacks:     cfg.Metrics.Counter("relay_fallbacks_total", "fallback replies sent"),
	}
}

// Run consumes inbound events until ctx is done or the bus closes. A
// panic in one event's handler is recovered and logged; it never takes
// down the loop or another event.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			sem <- struct{}{}
			go func(ev domain.Event) {
				defer func() {
					<-sem
					if r := recover(); r != nil {
						d.logger.Error("event handler panic", "panic", r, "channel", ev.ChannelID)
					}
				}()
				d.process(ctx, ev)
			}(ev)
		}
	}
}

// conversational applies the accept rules: real user text, no subtype
// (system and edited messages), not authored by the bot itself, and
// addressed to the bot — a DM channel, an IM channel type, or a mention.
func (d *Dispatcher) conversational(ev domain.Event) bool {
	if ev.Text == "" || ev.Subtype != "" {
		return false
	}
	if ev.UserID == "" || ev.UserID == d.botUserID {
		return false
	}
	return strings.HasPrefix(ev.ChannelID, "D") ||
		ev.ChannelType == "im" ||
		ev.Kind == domain.EventMention
}

func (d *Dispatcher) process(ctx context.Context, ev domain.Event) {
	d.received.Inc()

	if !d.conversational(ev) {
		d.ignored.Inc()
		return
	}
	if !d.dedupe.MarkIfNew(ev.ClientMsgID) {
		d.deduped.Inc()
		d.logger.Debug("duplicate event dropped", "client_msg_id", ev.ClientMsgID)
		return
	}

	sessionKey := ev.ChannelID + ":" + ev.UserID
	d.logger.Info("event accepted",
		"session", sessionKey,
		"kind", string(ev.Kind),
		"content_len", len(ev.Text),
	)

	branch := "plain"
	var reply string
	var err error

	if d.gateway != nil && d.router.NeedsRetrieval(ev.Text) {
		branch = "retrieval"
		d.retrievalHits.Inc()
		results := d.gateway.Search(ctx, ev.Text)
		if len(results) == 0 {
			err = errNoSearchResults
		} else {
			reply, err = d.engine.RespondWithSearch(ctx, sessionKey, ev.Text, results)
		}
	} else {
		d.plainHits.Inc()
		reply, err = d.engine.Respond(ctx, sessionKey, ev.Text)
	}

	outcome := "ok"
	errText := ""
	if err != nil {
		outcome = "fallback"
		errText = err.Error()
		d.fallbacks.Inc()
		d.logger.Error("respond failed", "session", sessionKey, "branch", branch, "err", err)
		if branch == "retrieval" {
			reply = d.persona.SearchFallbackReply
		} else {
			reply = d.persona.FallbackReply
		}
	} else {
		d.replies.Inc()
	}

	d.bus.SendOutbound(domain.OutboundMessage{
		Channel:   d.channelName,
		ChannelID: ev.ChannelID,
		Text:      markup.ToSlack(reply),
		Mrkdwn:    true,
	})

	d.audit.Record(ctx, audit.Entry{
		SessionKey: sessionKey,
		ChannelID:  ev.ChannelID,
		UserID:     ev.UserID,
		Kind:       string(ev.Kind),
		Branch:     branch,
		Outcome:    outcome,
		Error:      errText,
		ReplyLen:   len(reply),
	})
}
