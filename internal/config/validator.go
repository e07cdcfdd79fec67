package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a full configuration.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateBaseURL(cfg.BaseURL); err != nil {
		return err
	}
	if cfg.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if cfg.Timeouts.AskSeconds <= 0 {
		return fmt.Errorf("ask timeout must be positive, got %d", cfg.Timeouts.AskSeconds)
	}
	if cfg.Timeouts.StallSeconds <= 0 {
		return fmt.Errorf("stall timeout must be positive, got %d", cfg.Timeouts.StallSeconds)
	}
	if cfg.Timeouts.SessionRefreshSeconds <= 0 {
		return fmt.Errorf("session refresh timeout must be positive, got %d", cfg.Timeouts.SessionRefreshSeconds)
	}
	if cfg.RetryBudget <= 0 {
		return fmt.Errorf("retry budget must be positive, got %d", cfg.RetryBudget)
	}
	if cfg.CooldownMinutes <= 0 {
		return fmt.Errorf("cooldown must be positive, got %d minutes", cfg.CooldownMinutes)
	}
	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port must be in 1-65535, got %d", cfg.Gateway.Port)
	}
	if err := v.ValidateKeepAlive(cfg.KeepAlive); err != nil {
		return err
	}
	return nil
}

// ValidateBaseURL checks the chat site origin.
func (v *Validator) ValidateBaseURL(base string) error {
	if base == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	if strings.HasSuffix(base, "/") {
		return fmt.Errorf("base URL must not end with a slash")
	}
	return nil
}

// ValidateKeepAlive checks the session keep-alive cron spec. Empty
// disables keep-alive and is valid.
func (v *Validator) ValidateKeepAlive(spec string) error {
	if spec == "" {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid keep-alive schedule %q: %w", spec, err)
	}
	return nil
}
