package media

import (
	"context"
	"time"
)

// Video describes a resolved media item.
type Video struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
}

// Format describes one downloadable stream variant of a video.
type Format struct {
	ID            string
	MimeType      string
	QualityLabel  string
	Height        int
	FPS           int
	Bitrate       int
	AudioChannels int
	SizeBytes     int64
	HasVideo      bool
	HasAudio      bool
	HDR           bool
}

// Extractor resolves a media URL into a format inventory and downloads
// individual streams. Implementations classify backend failures with the
// services error markers.
type Extractor interface {
	// Resolve fetches metadata and the raw format list for a URL.
	Resolve(ctx context.Context, rawURL string) (*Video, []Format, error)

	// Download streams one format to dest, invoking onBytes with the size
	// of each chunk written so callers can aggregate progress across
	// parallel streams.
	Download(ctx context.Context, rawURL, formatID, dest string, onBytes func(int)) error
}
