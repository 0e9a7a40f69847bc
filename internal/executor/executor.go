// Package executor turns a claimed format selection into a finished file
// inside the job workspace: parallel stream download, ffmpeg muxing, MP3
// transcode with tagging, and the file size ceiling.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"ytcourier/internal/catalog"
	"ytcourier/internal/fileutil"
	"ytcourier/internal/logging"
	"ytcourier/internal/media"
	"ytcourier/internal/services"
)

// StreamRunner abstracts the ffmpeg operations the executor needs.
type StreamRunner interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
	TranscodeMP3(ctx context.Context, inPath, outPath string, duration time.Duration, onPercent func(float64)) error
}

// ThumbnailFetcher abstracts cover art retrieval.
type ThumbnailFetcher interface {
	Fetch(ctx context.Context, videoID, dest string) (string, error)
}

// Request describes one execution.
type Request struct {
	URL       string
	VideoID   string
	Title     string
	Author    string
	Duration  time.Duration
	Entry     catalog.Entry
	Workspace string
}

// Outcome describes the produced file.
type Outcome struct {
	OutputPath    string
	SizeBytes     int64
	ThumbnailPath string
}

// ProgressFunc receives phase names and percentages in [0, 100].
type ProgressFunc func(phase string, percent float64)

// Executor produces deliverable files.
type Executor struct {
	extractor media.Extractor
	runner    StreamRunner
	thumbs    ThumbnailFetcher
	maxBytes  int64
	logger    *slog.Logger
}

// New constructs an Executor. maxBytes is the hard ceiling for any
// produced file.
func New(extractor media.Extractor, runner StreamRunner, thumbs ThumbnailFetcher, maxBytes int64, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		extractor: extractor,
		runner:    runner,
		thumbs:    thumbs,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Execute runs a job's chosen format to completion inside its workspace.
// A known size over the ceiling fails before the first byte moves; an
// unknown size is monitored during download and aborted the moment the
// ceiling is crossed. Cancellation arrives through the context.
func (e *Executor) Execute(ctx context.Context, req Request, onProgress ProgressFunc) (*Outcome, error) {
	if onProgress == nil {
		onProgress = func(string, float64) {}
	}

	if e.maxBytes > 0 && req.Entry.SizeBytes > e.maxBytes && !req.Entry.SizeEstimated {
		return nil, services.Wrap(services.ErrTooLarge, "executor", "execute",
			fmt.Sprintf("%s exceeds the %s ceiling", fileutil.HumanSize(req.Entry.SizeBytes), fileutil.HumanSize(e.maxBytes)), nil)
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("execution started",
		logging.String("format", req.Entry.FormatID),
		logging.String("label", req.Entry.Label),
		logging.String(logging.FieldEventType, "execution_started"))

	var outcome *Outcome
	var err error
	switch req.Entry.Kind {
	case catalog.KindAudio:
		outcome, err = e.executeAudio(ctx, req, onProgress)
	default:
		outcome, err = e.executeVideo(ctx, req, onProgress)
	}
	if err != nil {
		return nil, err
	}

	if e.maxBytes > 0 && outcome.SizeBytes > e.maxBytes {
		return nil, services.Wrap(services.ErrTooLarge, "executor", "execute",
			fmt.Sprintf("produced %s, ceiling is %s", fileutil.HumanSize(outcome.SizeBytes), fileutil.HumanSize(e.maxBytes)), nil)
	}

	logger.Info("execution finished",
		logging.String("output", outcome.OutputPath),
		logging.Int64("size_bytes", outcome.SizeBytes),
		logging.String(logging.FieldEventType, "execution_finished"))
	return outcome, nil
}

// executeVideo downloads the chosen video rendition, muxing in the best
// audio stream when the rendition is video-only.
func (e *Executor) executeVideo(ctx context.Context, req Request, onProgress ProgressFunc) (*Outcome, error) {
	outName := fileutil.SanitizeFileName(req.Title) + ".mp4"
	outPath := filepath.Join(req.Workspace, outName)

	if !req.Entry.RequiresMux {
		tracker := e.newByteTracker(req.Entry.SizeBytes, func(percent float64) {
			onProgress("Downloading", percent*0.99)
		})
		if err := e.downloadGuarded(ctx, req.URL, req.Entry.FormatID, outPath, tracker); err != nil {
			return nil, err
		}
		onProgress("Downloading", 100)
		return e.finishOutcome(outPath)
	}

	videoTemp := filepath.Join(req.Workspace, "video-stream")
	audioTemp := filepath.Join(req.Workspace, "audio-stream")

	tracker := e.newByteTracker(req.Entry.SizeBytes, func(percent float64) {
		onProgress("Downloading", percent*0.95)
	})

	var wg sync.WaitGroup
	var videoErr, audioErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		videoErr = e.downloadGuarded(ctx, req.URL, req.Entry.FormatID, videoTemp, tracker)
	}()
	go func() {
		defer wg.Done()
		audioErr = e.downloadGuarded(ctx, req.URL, req.Entry.AudioFormatID, audioTemp, tracker)
	}()
	wg.Wait()

	if err := firstError(tracker.limitError(), videoErr, audioErr); err != nil {
		return nil, err
	}

	onProgress("Merging", 95)
	if err := e.runner.Mux(ctx, videoTemp, audioTemp, outPath); err != nil {
		return nil, err
	}
	onProgress("Merging", 100)
	return e.finishOutcome(outPath)
}

// executeAudio downloads the best audio stream, transcodes it to MP3, and
// tags the result. Cover art is best effort.
func (e *Executor) executeAudio(ctx context.Context, req Request, onProgress ProgressFunc) (*Outcome, error) {
	sourceTemp := filepath.Join(req.Workspace, "audio-source")
	outPath := filepath.Join(req.Workspace, fileutil.SanitizeFileName(req.Title)+".mp3")

	tracker := e.newByteTracker(0, func(percent float64) {
		onProgress("Downloading", percent*0.5)
	})
	if err := e.downloadGuarded(ctx, req.URL, req.Entry.AudioFormatID, sourceTemp, tracker); err != nil {
		return nil, err
	}

	onProgress("Converting", 50)
	err := e.runner.TranscodeMP3(ctx, sourceTemp, outPath, req.Duration, func(percent float64) {
		onProgress("Converting", 50+percent*0.45)
	})
	if err != nil {
		return nil, err
	}

	thumbPath := filepath.Join(req.Workspace, "cover.jpg")
	if e.thumbs != nil {
		if variant, thumbErr := e.thumbs.Fetch(ctx, req.VideoID, thumbPath); thumbErr != nil {
			logging.WithContext(ctx, e.logger).Warn("cover art unavailable",
				logging.Error(thumbErr),
				logging.String(logging.FieldEventType, "thumbnail_failed"),
				logging.String(logging.FieldImpact, "audio delivered without cover art"))
			thumbPath = ""
		} else {
			logging.WithContext(ctx, e.logger).Debug("cover art fetched",
				logging.String("variant", variant))
		}
	} else {
		thumbPath = ""
	}

	if err := tagMP3(outPath, req.Title, req.Author, thumbPath); err != nil {
		// Tag failures do not lose the audio itself.
		logging.WithContext(ctx, e.logger).Warn("tagging failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "tagging_failed"))
	}

	outcome, err := e.finishOutcome(outPath)
	if err != nil {
		return nil, err
	}
	outcome.ThumbnailPath = thumbPath
	onProgress("Converting", 100)
	return outcome, nil
}

func (e *Executor) finishOutcome(path string) (*Outcome, error) {
	size, err := fileutil.FileSize(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDownloadFailed, "executor", "finish", "stat output", err)
	}
	if size == 0 {
		return nil, services.Wrap(services.ErrDownloadFailed, "executor", "finish", "produced an empty file", nil)
	}
	return &Outcome{OutputPath: path, SizeBytes: size}, nil
}

// downloadGuarded runs one stream download under the byte tracker's
// derived context so a ceiling breach aborts the transfer. Tracker limit
// breaches take precedence over the resulting cancellation error.
func (e *Executor) downloadGuarded(ctx context.Context, url, formatID, dest string, tracker *byteTracker) error {
	err := e.extractor.Download(tracker.Context(ctx), url, formatID, dest, tracker.Add)
	if limitErr := tracker.limitError(); limitErr != nil {
		return limitErr
	}
	return err
}

// byteTracker aggregates bytes across parallel streams, emits percentages
// against an expected total, and trips when the ceiling is crossed.
type byteTracker struct {
	expected  int64
	ceiling   int64
	total     atomic.Int64
	tripped   atomic.Bool
	onPercent func(float64)
	cancel    context.CancelFunc
	mu        sync.Mutex
}

func (e *Executor) newByteTracker(expected int64, onPercent func(float64)) *byteTracker {
	return &byteTracker{
		expected:  expected,
		ceiling:   e.maxBytes,
		onPercent: onPercent,
	}
}

// Context derives a cancellable context the tracker trips on a ceiling
// breach.
func (t *byteTracker) Context(ctx context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return ctx
	}
	derived, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	return derived
}

// Add records n downloaded bytes.
func (t *byteTracker) Add(n int) {
	total := t.total.Add(int64(n))
	if t.ceiling > 0 && total > t.ceiling && t.tripped.CompareAndSwap(false, true) {
		t.mu.Lock()
		if t.cancel != nil {
			t.cancel()
		}
		t.mu.Unlock()
		return
	}
	if t.expected > 0 && t.onPercent != nil {
		percent := float64(total) / float64(t.expected) * 100
		if percent > 100 {
			percent = 100
		}
		t.onPercent(percent)
	}
}

func (t *byteTracker) limitError() error {
	if !t.tripped.Load() {
		return nil
	}
	return services.Wrap(services.ErrTooLarge, "executor", "download",
		"download crossed the file size ceiling", nil)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
