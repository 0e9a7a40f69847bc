// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"ytcourier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Telegram.BotToken = "test-token"
	cfg.Telegram.WhitelistEnabled = false
	cfg.Paths.WorkspaceRoot = filepath.Join(base, "workspaces")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Store.DSN = ":memory:"
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAllowedUsers enables the whitelist with the given user ids.
func WithAllowedUsers(ids ...int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Telegram.WhitelistEnabled = true
		cfg.Telegram.AllowedUserIDs = ids
	}
}

// WithStoreDSN overrides the job store DSN.
func WithStoreDSN(dsn string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Store.DSN = dsn
	}
}
