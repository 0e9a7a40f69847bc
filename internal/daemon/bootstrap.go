package daemon

import (
	"fmt"

	"log/slog"

	"ytcourier/internal/config"
	"ytcourier/internal/executor"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/media/ffmpeg"
	"ytcourier/internal/media/thumbnail"
	"ytcourier/internal/media/youtube"
	"ytcourier/internal/notifications"
	"ytcourier/internal/transport"
	"ytcourier/internal/transport/telegram"
	"ytcourier/internal/uploader"
	"ytcourier/internal/workflow"
	"ytcourier/internal/workspace"
)

// Bootstrap wires the production components into a ready daemon. The bot
// and the workflow manager reference each other, so the handler is bound
// after both exist.
func Bootstrap(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	store, err := jobstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	extractor, err := youtube.New(cfg.Downloads.CookiesPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	acl := transport.NewAccessControl(cfg.Telegram.WhitelistEnabled, cfg.Telegram.AllowedUserIDs)
	bot, err := telegram.New(cfg.Telegram.BotToken, acl, nil, cfg.Telegram.PollTimeout, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect bot: %w", err)
	}

	runner := ffmpeg.NewRunner(cfg.FFmpegBinary(), logger)
	thumbs := thumbnail.NewFetcher()
	exec := executor.New(extractor, runner, thumbs, cfg.Downloads.MaxFileSizeBytes, logger)
	up := uploader.New(bot, cfg.Downloads.MaxFileSizeBytes, logger)
	spaces := workspace.NewManager(cfg.Paths.WorkspaceRoot, logger)
	notifier := notifications.NewService(cfg)

	mgr := workflow.NewManager(cfg, store, extractor, exec, up, bot, spaces, notifier, logger)
	bot.SetHandler(mgr)

	d, err := New(cfg, store, logger, mgr, bot, spaces, notifier)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
