package workflow

import (
	"context"
	"errors"
	"time"

	"ytcourier/internal/catalog"
	"ytcourier/internal/executor"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
	"ytcourier/internal/uploader"
)

func (m *Manager) jobContext(job *jobstore.Job) context.Context {
	ctx := services.WithJobID(m.baseCtx, job.ID)
	return services.WithOwnerID(ctx, job.OwnerID)
}

// resolve fetches metadata and the format catalog, then offers the
// selection keyboard.
func (m *Manager) resolve(job *jobstore.Job) {
	ctx := m.jobContext(job)
	logger := logging.WithContext(ctx, m.logger)

	if err := m.store.Transition(ctx, job, jobstore.StatusResolving); err != nil {
		logger.Error("transition to resolving failed", logging.Error(err))
		return
	}

	video, formats, err := m.extractor.Resolve(ctx, job.URL)
	if err != nil {
		m.failResolve(ctx, job, err)
		return
	}

	cat, err := catalog.Build(video, formats)
	if err != nil {
		m.failResolve(ctx, job, err)
		return
	}
	encoded, err := cat.Encode()
	if err != nil {
		m.failResolve(ctx, job, err)
		return
	}

	job.VideoID = video.ID
	job.Title = video.Title
	job.CatalogJSON = encoded
	if err := m.store.Transition(ctx, job, jobstore.StatusAwaitingSelection); err != nil {
		logger.Error("transition to awaiting_selection failed", logging.Error(err))
		return
	}

	options := make([]transport.SelectionOption, 0, len(cat.Entries))
	for _, entry := range cat.Entries {
		options = append(options, transport.SelectionOption{
			JobID:     job.ID,
			FormatID:  entry.FormatID,
			Label:     entry.Label,
			SizeBytes: entry.SizeBytes,
			Estimated: entry.SizeEstimated,
		})
	}

	msgID, err := m.messenger.SendSelection(ctx, job.ChatID, transport.RenderSelectionPrompt(cat.Title, cat.DurationSeconds), options)
	if err != nil {
		m.failResolve(ctx, job, err)
		return
	}
	job.SelectionMsgID = msgID
	if err := m.store.SetSelectionMessage(ctx, job.ID, msgID); err != nil {
		logger.Warn("persist selection message failed", logging.Error(err))
	}

	logger.Info("catalog offered",
		logging.String("title", cat.Title),
		logging.Int("options", len(options)),
		logging.String(logging.FieldEventType, "catalog_offered"))

	// A /cancel can land while resolution is in flight.
	if requested, _ := m.store.CancelRequested(ctx, job.ID); requested {
		m.finalizeCancelledSelection(ctx, job)
	}
}

// execute runs a claimed selection to completion. Workspace removal is
// unconditional: it happens whether the job completes, fails, or is
// cancelled.
func (m *Manager) execute(job *jobstore.Job, entry catalog.Entry) {
	runCtx, cancel := context.WithCancel(m.jobContext(job))
	defer cancel()
	m.registerCancel(job.ID, cancel)
	defer m.unregisterCancel(job.ID)

	logger := logging.WithContext(runCtx, m.logger)

	editor := transport.NewProgressEditor(
		m.messenger, job.ChatID, job.SelectionMsgID,
		m.progressInterval(), float64(m.cfg.Downloads.ProgressPercentDelta),
	)

	if err := m.acquireSlot(runCtx); err != nil {
		m.finishFailure(job, editor, services.Wrap(services.ErrCancelled, "workflow", "execute", "cancelled while queued", err))
		return
	}
	defer m.releaseSlot()

	dir, err := m.workspaces.Create(job.ID)
	if err != nil {
		m.finishFailure(job, editor, services.Wrap(services.ErrDiskFull, "workflow", "execute", "create workspace", err))
		return
	}
	job.WorkspacePath = dir
	defer func() {
		if removeErr := m.workspaces.Remove(job.ID); removeErr != nil {
			logger.Warn("workspace cleanup failed",
				logging.Error(removeErr),
				logging.String(logging.FieldImpact, "disk space not reclaimed"))
		}
	}()

	if requested, _ := m.store.CancelRequested(runCtx, job.ID); requested {
		m.finishFailure(job, editor, services.Wrap(services.ErrCancelled, "workflow", "execute", "cancelled before start", nil))
		return
	}

	cat, err := catalog.Decode(job.CatalogJSON)
	if err != nil {
		m.finishFailure(job, editor, services.Wrap(services.ErrStaleSelection, "workflow", "execute", "catalog lost", err))
		return
	}

	relay := func(phase string, percent float64) {
		if err := m.store.UpdateProgress(m.baseCtx, job.ID, phase, percent, ""); err != nil {
			logger.Debug("persist progress failed", logging.Error(err))
		}
		if err := editor.Update(runCtx, phase, percent); err != nil {
			logger.Debug("progress edit failed", logging.Error(err))
		}
	}

	outcome, err := m.executor.Execute(runCtx, executor.Request{
		URL:       job.URL,
		VideoID:   job.VideoID,
		Title:     cat.Title,
		Author:    cat.Author,
		Duration:  time.Duration(cat.DurationSeconds) * time.Second,
		Entry:     entry,
		Workspace: dir,
	}, relay)
	if err != nil {
		m.finishFailure(job, editor, err)
		return
	}

	job.OutputPath = outcome.OutputPath
	if err := m.store.Transition(m.baseCtx, job, jobstore.StatusUploading); err != nil {
		logger.Error("transition to uploading failed", logging.Error(err))
		return
	}

	err = m.uploader.Deliver(runCtx, uploader.Delivery{
		ChatID:        job.ChatID,
		Kind:          job.DeliveryKind,
		Path:          outcome.OutputPath,
		Caption:       cat.Title,
		Title:         cat.Title,
		Performer:     cat.Author,
		ThumbnailPath: outcome.ThumbnailPath,
		DurationSecs:  cat.DurationSeconds,
	}, relay)
	if err != nil {
		m.finishFailure(job, editor, err)
		return
	}

	if err := m.store.Transition(m.baseCtx, job, jobstore.StatusCompleted); err != nil {
		logger.Error("transition to completed failed", logging.Error(err))
	}
	if err := editor.Finish(m.baseCtx, "Done: "+cat.Title); err != nil {
		logger.Debug("final edit failed", logging.Error(err))
	}
	if err := m.notifier.NotifyJobCompleted(m.baseCtx, cat.Title, outcome.SizeBytes); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
	logger.Info("job completed",
		logging.Int64("size_bytes", outcome.SizeBytes),
		logging.String(logging.FieldEventType, "job_completed"))
}

// failResolve ends a job that never reached the selection keyboard.
func (m *Manager) failResolve(ctx context.Context, job *jobstore.Job, err error) {
	logger := logging.WithContext(ctx, m.logger)
	logger.Warn("resolution failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldEventType, "resolution_failed"))

	job.ErrorMessage = err.Error()
	target := jobstore.StatusFailed
	if errors.Is(err, services.ErrCancelled) {
		target = jobstore.StatusCancelled
	}
	if transErr := m.store.Transition(m.baseCtx, job, target); transErr != nil {
		logger.Error("terminal transition failed", logging.Error(transErr))
	}
	m.sendText(job.ChatID, services.UserMessage(err))
	if notifyErr := m.notifier.NotifyJobFailed(m.baseCtx, job.URL, err); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
}

// finishFailure ends a running job, distinguishing cancellation from
// failure. The caller's deferred workspace removal still runs.
func (m *Manager) finishFailure(job *jobstore.Job, editor *transport.ProgressEditor, err error) {
	ctx := m.jobContext(job)
	logger := logging.WithContext(ctx, m.logger)

	cancelRequested, _ := m.store.CancelRequested(m.baseCtx, job.ID)
	cancelled := cancelRequested || errors.Is(err, services.ErrCancelled)

	if cancelled {
		if transErr := m.store.Transition(m.baseCtx, job, jobstore.StatusCancelled); transErr != nil {
			logger.Error("terminal transition failed", logging.Error(transErr))
		}
		if editErr := editor.Finish(m.baseCtx, "Cancelled."); editErr != nil {
			logger.Debug("final edit failed", logging.Error(editErr))
		}
		logger.Info("job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"))
		return
	}

	logger.Warn("job failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldEventType, "job_failed"))

	job.ErrorMessage = err.Error()
	if transErr := m.store.Transition(m.baseCtx, job, jobstore.StatusFailed); transErr != nil {
		logger.Error("terminal transition failed", logging.Error(transErr))
	}
	if editErr := editor.Finish(m.baseCtx, services.UserMessage(err)); editErr != nil {
		logger.Debug("final edit failed", logging.Error(editErr))
	}
	if notifyErr := m.notifier.NotifyJobFailed(m.baseCtx, job.Title, err); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
}

// finalizeCancelledSelection ends a job that was cancelled while no worker
// held it.
func (m *Manager) finalizeCancelledSelection(ctx context.Context, job *jobstore.Job) {
	logger := logging.WithContext(ctx, m.logger)
	if err := m.store.Transition(m.baseCtx, job, jobstore.StatusCancelled); err != nil {
		logger.Debug("cancel transition skipped", logging.Error(err))
		return
	}
	if job.SelectionMsgID != 0 {
		if err := m.messenger.ClearSelection(m.baseCtx, job.ChatID, job.SelectionMsgID); err != nil {
			logger.Debug("clear keyboard failed", logging.Error(err))
		}
	}
	m.sendText(job.ChatID, "Cancelled.")
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"))
}
