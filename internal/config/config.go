// Package config loads and validates the relay's JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for relaybot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Slack    SlackConfig    `json:"slack"`
	Provider ProviderConfig `json:"provider"`
	Search   SearchConfig   `json:"search"`
	Session  SessionConfig  `json:"session"`
	Dispatch DispatchConfig `json:"dispatch"`
	Persona  PersonaConfig  `json:"persona"`
	Audit    AuditConfig    `json:"audit"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"` // debug | info | warn | error
}

type SlackConfig struct {
	BotToken   string `json:"botToken"`
	BotUserID  string `json:"botUserId"` // the bot's own user ID, to avoid self-reply loops
	Port       int    `json:"port"`
	EventsPath string `json:"eventsPath"`
	HealthPath string `json:"healthPath"`
}

type ProviderConfig struct {
	APIKey      string  `json:"apiKey"`
	APIBase     string  `json:"apiBase,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type SearchConfig struct {
	Enabled    bool     `json:"enabled"`
	APIKey     string   `json:"apiKey,omitempty"`
	MaxResults int      `json:"maxResults"`
	Keywords   []string `json:"keywords,omitempty"` // retrieval triggers; empty = built-in set
}

type SessionConfig struct {
	IdleTimeoutMinutes int `json:"idleTimeoutMinutes"`
}

type DispatchConfig struct {
	MaxConcurrentEvents int `json:"maxConcurrentEvents"`
}

type PersonaConfig struct {
	Path string `json:"path,omitempty"` // optional YAML overlay
}

type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.relaybot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaybot"
	}
	return filepath.Join(home, ".relaybot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Defaults returns a config with sensible defaults and env-var
// placeholders for the credentials.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{LogLevel: "info"},
		Slack: SlackConfig{
			BotToken:   "${SLACK_BOT_TOKEN}",
			BotUserID:  "${BOT_USER_ID}",
			Port:       3000,
			EventsPath: "/slack/events",
			HealthPath: "/health",
		},
		Provider: ProviderConfig{
			APIKey: "${OPENAI_API_KEY}",
			Model:  "gpt-4o-mini",
		},
		Search: SearchConfig{
			Enabled:    true,
			APIKey:     "${BRAVE_API_KEY}",
			MaxResults: 3,
		},
		Session:  SessionConfig{IdleTimeoutMinutes: 30},
		Dispatch: DispatchConfig{MaxConcurrentEvents: 4},
		Audit: AuditConfig{
			Enabled: true,
			DBPath:  "~/.relaybot/audit.db",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.Persona.Path = ExpandPath(cfg.Persona.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is
// unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep the original when no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. Missing credentials
// are a startup failure here, by design: nothing downstream handles them.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Slack.BotToken == "" {
		errs = append(errs, "slack.botToken is required")
	}
	if cfg.Slack.BotUserID == "" {
		errs = append(errs, "slack.botUserId is required")
	}
	if cfg.Slack.Port < 0 || cfg.Slack.Port > 65535 {
		errs = append(errs, "slack.port must be between 0 and 65535")
	}

	if cfg.Provider.APIKey == "" {
		errs = append(errs, "provider.apiKey is required")
	}
	if cfg.Provider.Temperature < 0 || cfg.Provider.Temperature > 2 {
		errs = append(errs, "provider.temperature must be between 0 and 2")
	}

	if cfg.Search.Enabled && cfg.Search.APIKey == "" {
		errs = append(errs, "search.apiKey is required when search is enabled")
	}
	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 10 {
		errs = append(errs, "search.maxResults must be between 1 and 10")
	}

	if cfg.Session.IdleTimeoutMinutes < 1 {
		errs = append(errs, "session.idleTimeoutMinutes must be >= 1")
	}
	if cfg.Dispatch.MaxConcurrentEvents < 1 || cfg.Dispatch.MaxConcurrentEvents > 100 {
		errs = append(errs, "dispatch.maxConcurrentEvents must be between 1 and 100")
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
