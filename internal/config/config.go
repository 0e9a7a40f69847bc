package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	LogDir        string `toml:"log_dir"`
}

// Telegram contains configuration for the Telegram transport.
type Telegram struct {
	BotToken         string  `toml:"bot_token"`
	WhitelistEnabled bool    `toml:"whitelist_enabled"`
	AllowedUserIDs   []int64 `toml:"allowed_user_ids"`
	PollTimeout      int     `toml:"poll_timeout"`
}

// Downloads contains configuration for download and delivery limits.
type Downloads struct {
	MaxFileSizeBytes       int64  `toml:"max_file_size_bytes"`
	MaxConcurrentJobs      int    `toml:"max_concurrent_jobs"`
	ProgressUpdateInterval int    `toml:"progress_update_interval_ms"`
	ProgressPercentDelta   int    `toml:"progress_percent_delta"`
	CookiesPath            string `toml:"cookies_path"`
}

// Store contains configuration for the job store backing database.
type Store struct {
	DSN string `toml:"dsn"`
}

// Workspace contains configuration for per-job scratch directories.
type Workspace struct {
	SweepMaxAgeHours int `toml:"sweep_max_age_hours"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ytcourier.
//
// Configuration sections by subsystem:
//   - Paths: workspace root and log directory
//   - Telegram: bot credentials, allow-list, long-poll timeout
//   - Downloads: size ceiling, concurrency cap, progress throttling
//   - Store: job store DSN (in-memory by default)
//   - Workspace: startup sweep age for leftover job directories
//   - Notifications: ntfy operator notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Downloads     Downloads     `toml:"downloads"`
	Store         Store         `toml:"store"`
	Workspace     Workspace     `toml:"workspace"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ytcourier/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is honoured first so the bot token can live outside
// the TOML file. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytcourier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceRoot, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for muxing and
// audio transcode.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// SocketPath returns the Unix socket location for the daemon IPC server.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "ytcourier.sock")
}

// LockPath returns the lock file location used for single-instance checks.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "ytcourierd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
