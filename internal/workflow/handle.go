package workflow

import (
	"context"
	"errors"
	"fmt"

	"ytcourier/internal/catalog"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
)

// HandleURL admits a new job for a pasted URL and starts resolution.
func (m *Manager) HandleURL(ctx context.Context, ownerID, chatID int64, text string) {
	logger := logging.WithContext(services.WithOwnerID(m.baseCtx, ownerID), m.logger)

	canonical, videoID, err := catalog.Normalize(text)
	if err != nil {
		logger.Debug("rejected input", logging.Error(err))
		m.sendText(chatID, services.UserMessage(err))
		return
	}

	job, err := m.store.NewJob(ctx, ownerID, chatID, canonical)
	if errors.Is(err, services.ErrAlreadyActive) {
		m.sendText(chatID, "You already have a job in progress. Finish or /cancel it first.")
		return
	}
	if err != nil {
		logger.Error("admission failed", logging.Error(err))
		m.sendText(chatID, services.UserMessage(services.ErrUnreachable))
		return
	}
	job.VideoID = videoID

	logger.Info("job admitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("video_id", videoID),
		logging.String(logging.FieldEventType, "job_admitted"))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolve(job)
	}()
}

// HandleSelection binds a keyboard tap to a job and starts execution. The
// returned text becomes the callback acknowledgement.
func (m *Manager) HandleSelection(ctx context.Context, ownerID int64, sel transport.Selection) string {
	job, err := m.store.GetByID(ctx, sel.JobID)
	if err != nil {
		return "This menu has expired."
	}
	if job.OwnerID != ownerID {
		return ""
	}

	cat, err := catalog.Decode(job.CatalogJSON)
	if err != nil {
		return "This menu has expired."
	}
	entry, ok := cat.Entry(sel.FormatID)
	if !ok {
		return "That option is no longer offered."
	}

	kind := jobstore.DeliveryVideo
	if entry.Kind == catalog.KindAudio {
		kind = jobstore.DeliveryAudio
	}

	claimed, err := m.store.ClaimSelection(ctx, job.ID, entry.FormatID, kind)
	if errors.Is(err, services.ErrStaleSelection) {
		if job.Status == jobstore.StatusAwaitingSelection {
			return "Try again."
		}
		return "Already handled."
	}
	if err != nil {
		logging.WithContext(ctx, m.logger).Error("claim failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
		return "Something went wrong."
	}

	if clearErr := m.messenger.ClearSelection(ctx, claimed.ChatID, claimed.SelectionMsgID); clearErr != nil {
		logging.WithContext(ctx, m.logger).Debug("clear keyboard failed", logging.Error(clearErr))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(claimed, entry)
	}()

	return fmt.Sprintf("Queued: %s", entry.Label)
}

// HandleCancel requests cancellation of the owner's active job.
func (m *Manager) HandleCancel(ctx context.Context, ownerID, chatID int64) {
	job, err := m.store.ActiveForOwner(ctx, ownerID)
	if err != nil {
		m.sendText(chatID, "Nothing to cancel.")
		return
	}

	flagged, err := m.CancelJob(ctx, job.ID)
	if err != nil {
		logging.WithContext(ctx, m.logger).Warn("cancel failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
	if !flagged {
		m.sendText(chatID, "Nothing to cancel.")
		return
	}
	if job.Status == jobstore.StatusExecuting || job.Status == jobstore.StatusUploading {
		m.sendText(chatID, "Cancelling...")
	}
}

// HandleStatus reports the owner's active job.
func (m *Manager) HandleStatus(ctx context.Context, ownerID, chatID int64) {
	job, err := m.store.ActiveForOwner(ctx, ownerID)
	if err != nil {
		m.sendText(chatID, "No active job.")
		return
	}

	switch job.Status {
	case jobstore.StatusAwaitingSelection:
		m.sendText(chatID, fmt.Sprintf("%s is waiting for a quality choice.", job.Title))
	case jobstore.StatusExecuting, jobstore.StatusUploading:
		m.sendText(chatID, fmt.Sprintf("%s: %s %.0f%%", job.Title, job.ProgressPhase, job.ProgressPercent))
	default:
		m.sendText(chatID, fmt.Sprintf("%s is %s.", job.Title, job.Status))
	}
}

func (m *Manager) sendText(chatID int64, text string) {
	if _, err := m.messenger.SendText(m.baseCtx, chatID, text); err != nil {
		m.logger.Warn("send failed",
			logging.Int64("chat_id", chatID),
			logging.Error(err))
	}
}
