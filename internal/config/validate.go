package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.Paths.validate(); err != nil {
		return err
	}
	if err := c.Telegram.validate(); err != nil {
		return err
	}
	if err := c.Downloads.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	return nil
}

func (p *Paths) validate() error {
	if p.WorkspaceRoot == "" {
		return errors.New("workspace_root is required")
	}
	if p.LogDir == "" {
		return errors.New("log_dir is required")
	}
	return nil
}

func (t *Telegram) validate() error {
	if t.BotToken == "" {
		return errors.New("telegram bot_token is required (set bot_token in config or the YTCOURIER_BOT_TOKEN environment variable)")
	}
	if t.WhitelistEnabled && len(t.AllowedUserIDs) == 0 {
		return errors.New("whitelist_enabled is set but allowed_user_ids is empty")
	}
	return nil
}

func (d *Downloads) validate() error {
	if d.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("max_file_size_bytes must be positive, got %d", d.MaxFileSizeBytes)
	}
	if d.ProgressPercentDelta > 100 {
		return fmt.Errorf("progress_percent_delta must be at most 100, got %d", d.ProgressPercentDelta)
	}
	return nil
}

func (l *Logging) validate() error {
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging format must be console or json, got %q", l.Format)
	}
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be debug, info, warn, or error, got %q", l.Level)
	}
	return nil
}
