// Package uploader delivers finished files to the requesting chat, with a
// final size check and a single retry for transient transport failures.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ytcourier/internal/fileutil"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
)

// Delivery describes one finished file ready for upload.
type Delivery struct {
	ChatID        int64
	Kind          jobstore.DeliveryKind
	Path          string
	Caption       string
	Title         string
	Performer     string
	ThumbnailPath string
	DurationSecs  int
}

// ProgressFunc receives phase names and percentages in [0, 100].
type ProgressFunc func(phase string, percent float64)

// Uploader pushes files through the transport.
type Uploader struct {
	messenger  transport.Messenger
	maxBytes   int64
	retryDelay time.Duration
	logger     *slog.Logger
}

// New constructs an Uploader. maxBytes is re-checked immediately before
// upload as the last line of defense.
func New(messenger transport.Messenger, maxBytes int64, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{
		messenger:  messenger,
		maxBytes:   maxBytes,
		retryDelay: 3 * time.Second,
		logger:     logger,
	}
}

// SetRetryDelay overrides the pause before the single retry.
func (u *Uploader) SetRetryDelay(d time.Duration) {
	u.retryDelay = d
}

// Deliver uploads a file. A transient transport failure is retried once;
// the 100% progress event fires exactly once, after the upload succeeds.
func (u *Uploader) Deliver(ctx context.Context, d Delivery, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(string, float64) {}
	}

	size, err := fileutil.FileSize(d.Path)
	if err != nil {
		return services.Wrap(services.ErrTransport, "uploader", "deliver", "stat output", err)
	}
	if u.maxBytes > 0 && size > u.maxBytes {
		return services.Wrap(services.ErrTooLarge, "uploader", "deliver",
			fmt.Sprintf("final file is %s, ceiling is %s", fileutil.HumanSize(size), fileutil.HumanSize(u.maxBytes)), nil)
	}

	logger := logging.WithContext(ctx, u.logger)
	onProgress("Uploading", 0)

	err = u.send(ctx, d)
	if err != nil && errors.Is(err, services.ErrTransport) {
		logger.Warn("upload failed, retrying once",
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_retry"))
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrCancelled, "uploader", "deliver", "context cancelled", ctx.Err())
		case <-time.After(u.retryDelay):
		}
		err = u.send(ctx, d)
	}
	if err != nil {
		return err
	}

	onProgress("Uploading", 100)
	logger.Info("upload finished",
		logging.String("path", d.Path),
		logging.Int64("size_bytes", size),
		logging.String(logging.FieldEventType, "upload_finished"))
	return nil
}

func (u *Uploader) send(ctx context.Context, d Delivery) error {
	if d.Kind == jobstore.DeliveryAudio {
		return u.messenger.SendAudio(ctx, d.ChatID, transport.Audio{
			Path:          d.Path,
			Title:         d.Title,
			Performer:     d.Performer,
			ThumbnailPath: d.ThumbnailPath,
			DurationSecs:  d.DurationSecs,
		})
	}
	return u.messenger.SendVideo(ctx, d.ChatID, d.Path, d.Caption)
}
