// Package daemon ties the bot, workflow, and job store together behind a
// single-instance lock and exposes the control surface the IPC server
// serves.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"ytcourier/internal/config"
	"ytcourier/internal/deps"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
	"ytcourier/internal/notifications"
	"ytcourier/internal/workflow"
	"ytcourier/internal/workspace"
)

// Transport runs the chat front end until its context is cancelled.
type Transport interface {
	Run(ctx context.Context) error
	Username() string
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobstore.Store
	workflow *workflow.Manager
	bot      Transport
	spaces   *workspace.Manager
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	BotUsername  string
	Jobs         jobstore.Snapshot
	StoreDSN     string
	LockFilePath string
	Dependencies []deps.Status
	PID          int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, logger *slog.Logger, wf *workflow.Manager, bot Transport, spaces *workspace.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || bot == nil || spaces == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, transport, and workspace manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		bot:      bot,
		spaces:   spaces,
		notifier: notifier,
		logPath:  filepath.Join(cfg.Paths.LogDir, "ytcourier.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps stale workspaces, and launches
// the bot's update loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ytcourier daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	maxAge := time.Duration(d.cfg.Workspace.SweepMaxAgeHours) * time.Hour
	result := d.spaces.Sweep(d.ctx, maxAge)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("stale workspaces swept",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.bot.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("bot loop exited",
				logging.Error(err),
				logging.String(logging.FieldEventType, "bot_exited"))
		}
	}()

	d.running.Store(true)
	d.logger.Info("ytcourier daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bot", d.bot.Username()))
	if err := d.notifier.NotifyDaemonStarted(d.ctx, d.bot.Username()); err != nil {
		d.logger.Debug("startup notification failed", logging.Error(err))
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Close()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("ytcourier daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []jobstore.Status) ([]*jobstore.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// GetJob returns a single job by id.
func (d *Daemon) GetJob(ctx context.Context, id string) (*jobstore.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// CancelJob requests cancellation of a job through the workflow manager.
func (d *Daemon) CancelJob(ctx context.Context, id string) (bool, error) {
	if d.workflow == nil {
		return false, errors.New("workflow unavailable")
	}
	return d.workflow.CancelJob(ctx, id)
}

// ClearTerminalJobs removes finished job records from the store.
func (d *Daemon) ClearTerminalJobs(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearTerminal(ctx)
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snapshot, err := d.store.Summarize(ctx)
	if err != nil {
		d.logger.Warn("summarize jobs failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		BotUsername:  d.bot.Username(),
		Jobs:         snapshot,
		StoreDSN:     d.cfg.Store.DSN,
		LockFilePath: d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Required(d.cfg.FFmpegBinary())),
		PID:          os.Getpid(),
	}
}
