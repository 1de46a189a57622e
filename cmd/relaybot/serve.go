package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaybot/internal/agent"
	"relaybot/internal/audit"
	"relaybot/internal/bus"
	"relaybot/internal/channel"
	"relaybot/internal/config"
	"relaybot/internal/metrics"
	"relaybot/internal/persona"
	"relaybot/internal/provider"
	"relaybot/internal/search"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack relay",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	p, err := persona.Load(cfg.Persona.Path, logger)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	sessions := agent.NewSessionStore(time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute)

	chat := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:      cfg.Provider.APIKey,
		APIBase:     cfg.Provider.APIBase,
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
		Logger:      logger,
	})

	var gateway *search.Gateway
	if cfg.Search.Enabled {
		gateway = search.NewGateway(
			search.NewBrave(cfg.Search.APIKey, cfg.Search.MaxResults),
			cfg.Search.MaxResults,
			logger,
		)
	} else {
		logger.Info("search disabled, all messages take the plain path")
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.DBPath, logger)
		if err != nil {
			return err
		}
		defer auditStore.Close()
	}

	msgBus := bus.New(100, logger)
	defer msgBus.Close()

	engine := agent.NewEngine(chat, sessions, p, logger)

	dispatcher := agent.NewDispatcher(agent.DispatcherConfig{
		Bus:         msgBus,
		Engine:      engine,
		Gateway:     gateway,
		Router:      agent.NewRouter(cfg.Search.Keywords),
		Audit:       auditStore,
		Persona:     p,
		Metrics:     registry,
		BotUserID:   cfg.Slack.BotUserID,
		Concurrency: cfg.Dispatch.MaxConcurrentEvents,
		Logger:      logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	slackCh := channel.NewSlack(channel.SlackConfig{
		BotToken:    cfg.Slack.BotToken,
		Port:        cfg.Slack.Port,
		EventsPath:  cfg.Slack.EventsPath,
		HealthPath:  cfg.Slack.HealthPath,
		MetricsPath: metricsPath,
		Greeting:    p.Greeting,
		Metrics:     registry,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("relaybot starting",
		"version", version,
		"model", cfg.Provider.Model,
		"search", cfg.Search.Enabled,
		"port", cfg.Slack.Port,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return slackCh.Start(ctx, msgBus)
	})
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("relaybot stopped")
	return nil
}
