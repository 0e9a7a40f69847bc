// Package thumbnail fetches video cover art for audio tagging.
package thumbnail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// variants in descending quality order. YouTube serves a small placeholder
// image for variants a video does not have, so responses under
// minUsefulBytes are skipped rather than used.
var variants = []string{
	"maxresdefault",
	"sddefault",
	"hqdefault",
	"mqdefault",
	"default",
}

const minUsefulBytes = 1024

// Fetcher downloads the best available thumbnail for a video.
type Fetcher struct {
	client  *http.Client
	baseURL string
}

// NewFetcher constructs a Fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://i.ytimg.com/vi",
	}
}

// Fetch tries each quality variant in order and writes the first usable
// image to dest. Returns the variant name used.
func (f *Fetcher) Fetch(ctx context.Context, videoID, dest string) (string, error) {
	var lastErr error
	for _, variant := range variants {
		url := fmt.Sprintf("%s/%s/%s.jpg", f.baseURL, videoID, variant)
		size, err := f.fetchOne(ctx, url, dest)
		if err != nil {
			lastErr = err
			continue
		}
		if size < minUsefulBytes {
			_ = os.Remove(dest)
			continue
		}
		return variant, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("no usable thumbnail for %s: %w", videoID, lastErr)
	}
	return "", fmt.Errorf("no usable thumbnail for %s", videoID)
}

func (f *Fetcher) fetchOne(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return 0, err
	}
	return written, file.Close()
}
