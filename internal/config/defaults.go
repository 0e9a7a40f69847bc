package config

// Default configuration values.
const (
	DefaultWorkspaceRoot = "~/.local/share/ytcourier/workspaces"
	DefaultLogDir        = "~/.local/share/ytcourier/logs"

	DefaultPollTimeout = 30

	DefaultMaxFileSizeBytes       = 2_000_000_000
	DefaultMaxConcurrentJobs      = 4
	DefaultProgressUpdateInterval = 1000
	DefaultProgressPercentDelta   = 5

	DefaultStoreDSN = ":memory:"

	DefaultSweepMaxAgeHours = 24

	DefaultNotificationTimeout = 30

	DefaultLogFormat = "console"
	DefaultLogLevel  = "info"
)

// Default returns a Config populated with default values. Paths are stored
// unexpanded; normalize resolves them.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: DefaultWorkspaceRoot,
			LogDir:        DefaultLogDir,
		},
		Telegram: Telegram{
			WhitelistEnabled: true,
			PollTimeout:      DefaultPollTimeout,
		},
		Downloads: Downloads{
			MaxFileSizeBytes:       DefaultMaxFileSizeBytes,
			MaxConcurrentJobs:      DefaultMaxConcurrentJobs,
			ProgressUpdateInterval: DefaultProgressUpdateInterval,
			ProgressPercentDelta:   DefaultProgressPercentDelta,
		},
		Store: Store{
			DSN: DefaultStoreDSN,
		},
		Workspace: Workspace{
			SweepMaxAgeHours: DefaultSweepMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: DefaultNotificationTimeout,
		},
		Logging: Logging{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
	}
}
