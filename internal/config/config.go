package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/saran/chatbridge/pkg/browser"
)

// Config is the main chatbridge configuration.
type Config struct {
	// BaseURL is the chat site's origin.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// Model is a render model alias (default, legacy-paid, legacy-free)
	// or a raw model name.
	Model string `json:"model" mapstructure:"model"`

	// Browser holds browser launch settings.
	Browser browser.Config `json:"browser" mapstructure:"browser"`

	// Timeouts holds turn and session timing settings.
	Timeouts TimeoutsConfig `json:"timeouts" mapstructure:"timeouts"`

	// RetryBudget is how many attempts a turn gets before failing.
	RetryBudget int `json:"retry_budget" mapstructure:"retry_budget"`

	// CooldownMinutes is the access-denied self-disable window.
	CooldownMinutes int `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`

	// Gateway holds the serve-mode API settings.
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// KeepAlive is a cron spec for periodic session refresh in serve
	// mode. Empty disables it.
	KeepAlive string `json:"keep_alive" mapstructure:"keep_alive"`

	// Logging holds logger settings.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// DataDir is where the local conversation record lives.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TimeoutsConfig holds timing settings, in seconds.
type TimeoutsConfig struct {
	AskSeconds            int `json:"ask_seconds" mapstructure:"ask_seconds"`
	StallSeconds          int `json:"stall_seconds" mapstructure:"stall_seconds"`
	SessionRefreshSeconds int `json:"session_refresh_seconds" mapstructure:"session_refresh_seconds"`
}

// GatewayConfig holds the serve-mode API settings.
type GatewayConfig struct {
	Port int `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		BaseURL: "https://chat.openai.com",
		Model:   "default",
		Browser: browser.Config{
			Headless: true,
		},
		Timeouts: TimeoutsConfig{
			AskSeconds:            60,
			StallSeconds:          30,
			SessionRefreshSeconds: 15,
		},
		RetryBudget:     2,
		CooldownMinutes: 10,
		Gateway: GatewayConfig{
			Port: 5151,
		},
		KeepAlive: "@every 20m",
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		DataDir: filepath.Join(home, ".chatbridge"),
	}
}

// AskTimeout returns the turn timeout as a duration.
func (c *Config) AskTimeout() time.Duration {
	return time.Duration(c.Timeouts.AskSeconds) * time.Second
}

// StallTimeout returns the stall window as a duration.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Timeouts.StallSeconds) * time.Second
}

// SessionTimeout returns the session refresh timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Timeouts.SessionRefreshSeconds) * time.Second
}

// Cooldown returns the access-denied window as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// StorePath returns the sqlite conversation record path.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "conversations.db")
}

// String returns a JSON rendering of the config.
func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
