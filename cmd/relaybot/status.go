package main

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/audit"
	"relaybot/internal/config"
	"relaybot/internal/provider"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check provider health and show recent activity",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	chat := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.Model,
		Logger:  logger,
	})
	if err := chat.Healthy(ctx); err != nil {
		fmt.Printf("provider:  UNREACHABLE (%v)\n", err)
	} else {
		fmt.Printf("provider:  ok (%s, model %s)\n", chat.Name(), cfg.Provider.Model)
	}

	fmt.Printf("search:    enabled=%v\n", cfg.Search.Enabled)
	fmt.Printf("audit:     enabled=%v\n", cfg.Audit.Enabled)

	if !cfg.Audit.Enabled {
		return nil
	}
	store, err := audit.Open(cfg.Audit.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("\nno recorded activity yet")
		return nil
	}

	fmt.Println("\nrecent activity:")
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-8s %-9s %-8s session=%s reply=%dB",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Kind, e.Branch, e.Outcome, e.SessionKey, e.ReplyLen)
		if e.Error != "" {
			line += "  err=" + e.Error
		}
		fmt.Println(line)
	}
	return nil
}
