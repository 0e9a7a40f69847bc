// Package workflow orchestrates the job lifecycle: admission on URL
// receipt, format resolution, selection claiming, execution, upload, and
// the cleanup that runs no matter how a job ends.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ytcourier/internal/config"
	"ytcourier/internal/executor"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
	"ytcourier/internal/media"
	"ytcourier/internal/notifications"
	"ytcourier/internal/transport"
	"ytcourier/internal/uploader"
	"ytcourier/internal/workspace"
)

// Manager coordinates every in-flight job.
type Manager struct {
	cfg        *config.Config
	store      *jobstore.Store
	extractor  media.Extractor
	executor   *executor.Executor
	uploader   *uploader.Uploader
	messenger  transport.Messenger
	workspaces *workspace.Manager
	notifier   notifications.Service
	logger     *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewManager wires the workflow together.
func NewManager(
	cfg *config.Config,
	store *jobstore.Store,
	extractor media.Extractor,
	exec *executor.Executor,
	up *uploader.Uploader,
	messenger transport.Messenger,
	workspaces *workspace.Manager,
	notifier notifications.Service,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())

	var slots chan struct{}
	if cfg.Downloads.MaxConcurrentJobs > 0 {
		slots = make(chan struct{}, cfg.Downloads.MaxConcurrentJobs)
	}

	return &Manager{
		cfg:        cfg,
		store:      store,
		extractor:  extractor,
		executor:   exec,
		uploader:   up,
		messenger:  messenger,
		workspaces: workspaces,
		notifier:   notifier,
		logger:     logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		cancels:    make(map[string]context.CancelFunc),
		slots:      slots,
	}
}

// progressInterval returns the configured minimum gap between progress
// edits.
func (m *Manager) progressInterval() time.Duration {
	return time.Duration(m.cfg.Downloads.ProgressUpdateInterval) * time.Millisecond
}

// Wait blocks until every in-flight job goroutine has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels all in-flight jobs and waits for them to unwind. Their
// workspaces are removed by the normal terminal-state cleanup.
func (m *Manager) Close() {
	m.baseCancel()
	m.wg.Wait()
}

// CancelJob flags a job for cancellation and interrupts its worker if one
// is running. Returns false when the job is unknown or already terminal.
func (m *Manager) CancelJob(ctx context.Context, jobID string) (bool, error) {
	flagged, err := m.store.RequestCancel(ctx, jobID)
	if err != nil || !flagged {
		return false, err
	}
	m.mu.Lock()
	cancel, running := m.cancels[jobID]
	m.mu.Unlock()
	if running {
		cancel()
		return true, nil
	}

	// No worker holds this job (it is awaiting selection), so the manager
	// finishes it directly.
	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return true, err
	}
	m.finalizeCancelledSelection(ctx, job)
	return true, nil
}

func (m *Manager) registerCancel(jobID string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancels[jobID] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterCancel(jobID string) {
	m.mu.Lock()
	delete(m.cancels, jobID)
	m.mu.Unlock()
}

func (m *Manager) acquireSlot(ctx context.Context) error {
	if m.slots == nil {
		return nil
	}
	select {
	case m.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseSlot() {
	if m.slots == nil {
		return
	}
	<-m.slots
}
