// Package youtube adapts the kkdai YouTube client to the media.Extractor
// contract.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"ytcourier/internal/media"
	"ytcourier/internal/services"
)

// Client resolves and downloads YouTube streams.
type Client struct {
	inner youtube.Client
}

// New constructs a Client. When cookiesPath is non-empty the file is parsed
// as a Netscape cookie export and attached to every request, which unlocks
// age-restricted content.
func New(cookiesPath string) (*Client, error) {
	client := &Client{}
	if cookiesPath != "" {
		jar, err := loadCookieJar(cookiesPath)
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidURL, "youtube", "new", "load cookies", err)
		}
		client.inner.HTTPClient = &http.Client{Jar: jar}
	}
	return client, nil
}

// Resolve fetches metadata and the raw format inventory for a URL.
func (c *Client) Resolve(ctx context.Context, rawURL string) (*media.Video, []media.Format, error) {
	video, err := c.inner.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, nil, classifyResolveError(err)
	}

	formats := make([]media.Format, 0, len(video.Formats))
	for _, f := range video.Formats {
		formats = append(formats, convertFormat(f))
	}
	if len(formats) == 0 {
		return nil, nil, services.Wrap(services.ErrNoFormats, "youtube", "resolve", fmt.Sprintf("no formats for %s", video.ID), nil)
	}

	return &media.Video{
		ID:       video.ID,
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
	}, formats, nil
}

// Download streams one format to dest. Each chunk written is reported to
// onBytes; cancellation is observed between chunks via the context.
func (c *Client) Download(ctx context.Context, rawURL, formatID, dest string, onBytes func(int)) error {
	video, err := c.inner.GetVideoContext(ctx, rawURL)
	if err != nil {
		return classifyResolveError(err)
	}

	itag, err := strconv.Atoi(formatID)
	if err != nil {
		return services.Wrap(services.ErrDownloadFailed, "youtube", "download", fmt.Sprintf("bad format id %q", formatID), err)
	}
	format := video.Formats.FindByItag(itag)
	if format == nil {
		return services.Wrap(services.ErrNoFormats, "youtube", "download", fmt.Sprintf("itag %d not offered for %s", itag, video.ID), nil)
	}

	stream, _, err := c.inner.GetStreamContext(ctx, video, format)
	if err != nil {
		return services.Wrap(services.ErrDownloadFailed, "youtube", "download", "open stream", err)
	}
	defer stream.Close()

	file, err := os.Create(dest)
	if err != nil {
		return classifyWriteError(err)
	}
	defer file.Close()

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "youtube", "download", "context cancelled", err)
		}
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return classifyWriteError(writeErr)
			}
			if onBytes != nil {
				onBytes(n)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return services.Wrap(services.ErrDownloadFailed, "youtube", "download", "read stream", readErr)
		}
	}
	return file.Close()
}

func convertFormat(f youtube.Format) media.Format {
	mimeBase := f.MimeType
	if idx := strings.IndexByte(mimeBase, ';'); idx >= 0 {
		mimeBase = mimeBase[:idx]
	}
	return media.Format{
		ID:            strconv.Itoa(f.ItagNo),
		MimeType:      mimeBase,
		QualityLabel:  f.QualityLabel,
		Height:        f.Height,
		FPS:           f.FPS,
		Bitrate:       f.Bitrate,
		AudioChannels: f.AudioChannels,
		SizeBytes:     f.ContentLength,
		HasVideo:      strings.HasPrefix(mimeBase, "video/"),
		HasAudio:      f.AudioChannels > 0 || strings.HasPrefix(mimeBase, "audio/"),
		HDR:           strings.Contains(f.QualityLabel, "HDR"),
	}
}

func classifyResolveError(err error) error {
	var playability *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrVideoIDMinLength),
		errors.Is(err, youtube.ErrInvalidCharactersInVideoID):
		return services.Wrap(services.ErrInvalidURL, "youtube", "resolve", "unparseable video id", err)
	case errors.As(err, &playability):
		return services.Wrap(services.ErrUnreachable, "youtube", "resolve", playability.Reason, err)
	default:
		return services.Wrap(services.ErrUnreachable, "youtube", "resolve", "fetch metadata", err)
	}
}

func classifyWriteError(err error) error {
	if strings.Contains(err.Error(), "no space left") {
		return services.Wrap(services.ErrDiskFull, "youtube", "download", "write stream", err)
	}
	return services.Wrap(services.ErrDownloadFailed, "youtube", "download", "write stream", err)
}
