package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"slack": {"botToken": "xoxb-abc", "botUserId": "U0BOT", "port": 8080},
		"provider": {"apiKey": "sk-test", "model": "gpt-4o"},
		"search": {"enabled": false}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Slack.BotToken != "xoxb-abc" {
		t.Errorf("botToken = %q", cfg.Slack.BotToken)
	}
	if cfg.Slack.Port != 8080 {
		t.Errorf("port = %d", cfg.Slack.Port)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Slack.EventsPath != "/slack/events" {
		t.Errorf("eventsPath default lost: %q", cfg.Slack.EventsPath)
	}
	if cfg.Session.IdleTimeoutMinutes != 30 {
		t.Errorf("idleTimeoutMinutes default lost: %d", cfg.Session.IdleTimeoutMinutes)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_RELAY_TOKEN", "xoxb-from-env")

	path := writeConfig(t, `{
		"slack": {"botToken": "${TEST_RELAY_TOKEN}", "botUserId": "U0BOT"},
		"provider": {"apiKey": "${TEST_RELAY_MISSING:-sk-default}"},
		"search": {"enabled": false}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Slack.BotToken != "xoxb-from-env" {
		t.Errorf("env var not expanded: %q", cfg.Slack.BotToken)
	}
	if cfg.Provider.APIKey != "sk-default" {
		t.Errorf("default not applied: %q", cfg.Provider.APIKey)
	}
}

func TestExpandEnvVarsKeepsUnknown(t *testing.T) {
	got := ExpandEnvVars("token: ${TEST_RELAY_NO_SUCH_VAR}")
	if got != "token: ${TEST_RELAY_NO_SUCH_VAR}" {
		t.Errorf("unset var without default must stay literal, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Slack.BotToken = "xoxb-abc"
	cfg.Slack.BotUserID = "U0BOT"
	cfg.Provider.APIKey = "sk-test"
	cfg.Search.Enabled = false

	if err := Validate(cfg); err != nil {
		t.Fatalf("baseline config must validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing bot token", func(c *Config) { c.Slack.BotToken = "" }, "slack.botToken"},
		{"missing bot user", func(c *Config) { c.Slack.BotUserID = "" }, "slack.botUserId"},
		{"bad port", func(c *Config) { c.Slack.Port = 70000 }, "slack.port"},
		{"missing provider key", func(c *Config) { c.Provider.APIKey = "" }, "provider.apiKey"},
		{"bad temperature", func(c *Config) { c.Provider.Temperature = 3 }, "provider.temperature"},
		{"search without key", func(c *Config) { c.Search.Enabled = true; c.Search.APIKey = "" }, "search.apiKey"},
		{"bad max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.maxResults"},
		{"bad idle timeout", func(c *Config) { c.Session.IdleTimeoutMinutes = 0 }, "session.idleTimeoutMinutes"},
		{"bad concurrency", func(c *Config) { c.Dispatch.MaxConcurrentEvents = 0 }, "dispatch.maxConcurrentEvents"},
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }, "general.logLevel"},
		{"bad metrics endpoint", func(c *Config) { c.Metrics.Endpoint = "metrics" }, "metrics.endpoint"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := *cfg
			tc.mutate(&bad)
			err := Validate(&bad)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Defaults()
	cfg.Slack.BotToken = "xoxb-save"
	cfg.Slack.BotUserID = "U0BOT"
	cfg.Provider.APIKey = "sk-save"
	cfg.Search.Enabled = false

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Slack.BotToken != "xoxb-save" {
		t.Errorf("round trip lost botToken: %q", loaded.Slack.BotToken)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x/y.db"); got != filepath.Join(home, "x/y.db") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path must pass through, got %q", got)
	}
}
