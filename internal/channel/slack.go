// Package channel adapts chat platforms to the relay's message bus.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/metrics"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const slackMaxMsgLen = 4000

// Slack implements domain.Channel for the Slack Events API over HTTP.
// Inbound: the events endpoint answers the URL-verification challenge,
// publishes callback events to the bus, and acknowledges immediately —
// processing never holds up the response. Outbound: the registered bus
// handler is the delivery sink; post failures are logged and dropped.
type Slack struct {
	botToken    string
	port        int
	eventsPath  string
	healthPath  string
	metricsPath string
	greeting    string
	registry    *metrics.Registry

	client   *slack.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	server   *http.Server
	failures *metrics.Counter
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken    string
	Port        int
	EventsPath  string
	HealthPath  string
	MetricsPath string // empty disables the metrics endpoint
	Greeting    string
	Metrics     *metrics.Registry
	Logger      *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.EventsPath == "" {
		cfg.EventsPath = "/slack/events"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.Greeting == "" {
		cfg.Greeting = "Hello, I'm the relaybot assistant!"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRegistry()
	}
	return &Slack{
		botToken:    cfg.BotToken,
		port:        cfg.Port,
		eventsPath:  cfg.EventsPath,
		healthPath:  cfg.HealthPath,
		metricsPath: cfg.MetricsPath,
		greeting:    cfg.Greeting,
		registry:    cfg.Metrics,
		logger:      cfg.Logger,
		failures:    cfg.Metrics.Counter("relay_delivery_failures_total", "replies that could not be posted"),
	}
}

func (s *Slack) Name() string { return "slack" }

// Start registers the outbound handler and serves the events endpoint
// until ctx is done.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus
	s.client = slack.New(s.botToken)

	bus.OnOutbound("slack", s.deliver)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.eventsPath, s.handleEvents)
	mux.HandleFunc("GET "+s.healthPath, s.handleHealth)
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.registry.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("slack events server starting", "port", s.port, "path", s.eventsPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack events server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("slack events server: %w", err)
	}
}

func (s *Slack) handleEvents(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Signature verification is out of scope here; the deployment sits
	// behind its own gateway.
	apiEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	switch apiEvent.Type {
	case slackevents.URLVerification:
		var cr slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			http.Error(rw, "Invalid JSON", http.StatusBadRequest)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(map[string]string{"challenge": cr.Challenge})
		return

	case slackevents.CallbackEvent:
		if ev, ok := toEvent(apiEvent.InnerEvent); ok {
			s.bus.Publish(ev)
		}
	}

	// Acknowledge right away; processing happens behind the bus.
	rw.WriteHeader(http.StatusOK)
}

func (s *Slack) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(rw, s.greeting)
}

// toEvent maps a Slack callback event onto the relay's event model.
// Unrecognized inner events are dropped.
func toEvent(inner slackevents.EventsAPIInnerEvent) (domain.Event, bool) {
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		return domain.Event{
			Kind:        domain.EventMessage,
			ChannelID:   ev.Channel,
			ChannelType: ev.ChannelType,
			UserID:      ev.User,
			Text:        ev.Text,
			Subtype:     ev.SubType,
			ClientMsgID: ev.ClientMsgID,
			Timestamp:   time.Now(),
		}, true

	case *slackevents.AppMentionEvent:
		// Strip the "<@U...>" mention prefix; the event timestamp
		// stands in for the missing client message ID.
		text := ev.Text
		if idx := strings.Index(text, ">"); idx >= 0 {
			text = strings.TrimSpace(text[idx+1:])
		}
		return domain.Event{
			Kind:        domain.EventMention,
			ChannelID:   ev.Channel,
			UserID:      ev.User,
			Text:        text,
			ClientMsgID: ev.TimeStamp,
			Timestamp:   time.Now(),
		}, true
	}
	return domain.Event{}, false
}

// deliver posts a reply back to the source channel. Errors are logged and
// dropped: the inbound request was acknowledged long ago, so there is
// nobody left to tell.
func (s *Slack) deliver(msg domain.OutboundMessage) {
	opts := []slack.MsgOption{slack.MsgOptionAsUser(true)}
	if !msg.Mrkdwn {
		opts = append(opts, slack.MsgOptionDisableMarkdown())
	}

	for _, chunk := range splitMessage(msg.Text, slackMaxMsgLen) {
		chunkOpts := append([]slack.MsgOption{slack.MsgOptionText(chunk, false)}, opts...)
		if _, _, err := s.client.PostMessage(msg.ChannelID, chunkOpts...); err != nil {
			s.failures.Inc()
			s.logger.Error("slack send failed", "channel", msg.ChannelID, "err", err)
			return
		}
	}
}

// splitMessage cuts a long reply into chunks below maxLen, preferring to
// break at a newline past the halfway point.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
