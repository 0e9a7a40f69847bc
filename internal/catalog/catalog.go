package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ytcourier/internal/media"
	"ytcourier/internal/services"
)

// Kind distinguishes catalog entry products.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// MP3FormatID is the synthetic entry offering an audio-only MP3 rendition.
const MP3FormatID = "mp3"

// mp3BytesPerSecond approximates the output size of a 192 kbps MP3.
const mp3BytesPerSecond = 24000

// Entry is one selectable option presented to the user.
type Entry struct {
	FormatID      string `json:"format_id"`
	AudioFormatID string `json:"audio_format_id,omitempty"`
	Label         string `json:"label"`
	Kind          Kind   `json:"kind"`
	SizeBytes     int64  `json:"size_bytes"`
	SizeEstimated bool   `json:"size_estimated,omitempty"`
	RequiresMux   bool   `json:"requires_mux,omitempty"`
	Height        int    `json:"height,omitempty"`
	FPS           int    `json:"fps,omitempty"`
}

// Catalog is the normalized format inventory for one video.
type Catalog struct {
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title"`
	Author          string  `json:"author,omitempty"`
	DurationSeconds int     `json:"duration_seconds"`
	Entries         []Entry `json:"entries"`
}

// Build normalizes a raw format list into the options offered for
// selection. HDR variants, storyboard pseudo-formats, and high-frame-rate
// renditions below 720p are dropped; video-only formats carry the best
// audio stream's size so the displayed total reflects the delivered file;
// a synthetic MP3 entry is always appended when any audio source exists.
func Build(video *media.Video, formats []media.Format) (*Catalog, error) {
	bestAudio := bestAudioFormat(formats)

	byLabel := make(map[string]Entry)
	for _, f := range formats {
		if !f.HasVideo || f.Height == 0 || f.HDR {
			continue
		}
		if f.FPS > 30 && f.Height < 720 {
			continue
		}

		entry := Entry{
			FormatID:  f.ID,
			Label:     formatLabel(f),
			Kind:      KindVideo,
			SizeBytes: f.SizeBytes,
			Height:    f.Height,
			FPS:       f.FPS,
		}
		if !f.HasAudio {
			if bestAudio == nil {
				continue
			}
			entry.RequiresMux = true
			entry.AudioFormatID = bestAudio.ID
			if entry.SizeBytes > 0 {
				entry.SizeBytes += bestAudio.SizeBytes
			}
		}

		current, exists := byLabel[entry.Label]
		if !exists || preferEntry(entry, current, f, formats) {
			byLabel[entry.Label] = entry
		}
	}

	entries := make([]Entry, 0, len(byLabel)+1)
	for _, entry := range byLabel {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Height != entries[j].Height {
			return entries[i].Height > entries[j].Height
		}
		return entries[i].FPS > entries[j].FPS
	})

	if bestAudio != nil {
		entries = append(entries, Entry{
			FormatID:      MP3FormatID,
			AudioFormatID: bestAudio.ID,
			Label:         "MP3",
			Kind:          KindAudio,
			SizeBytes:     int64(video.Duration.Seconds()) * mp3BytesPerSecond,
			SizeEstimated: true,
		})
	}

	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrNoFormats, "catalog", "build", fmt.Sprintf("no offerable formats for %s", video.ID), nil)
	}

	return &Catalog{
		VideoID:         video.ID,
		Title:           video.Title,
		Author:          video.Author,
		DurationSeconds: int(video.Duration.Seconds()),
		Entries:         entries,
	}, nil
}

// preferEntry decides which of two same-label candidates to keep: an MP4
// container beats other containers, then the higher bitrate wins.
func preferEntry(candidate, current Entry, candidateFormat media.Format, formats []media.Format) bool {
	currentFormat, ok := findFormat(formats, current.FormatID)
	if !ok {
		return true
	}
	candidateMP4 := strings.Contains(candidateFormat.MimeType, "mp4")
	currentMP4 := strings.Contains(currentFormat.MimeType, "mp4")
	if candidateMP4 != currentMP4 {
		return candidateMP4
	}
	return candidateFormat.Bitrate > currentFormat.Bitrate
}

func findFormat(formats []media.Format, id string) (media.Format, bool) {
	for _, f := range formats {
		if f.ID == id {
			return f, true
		}
	}
	return media.Format{}, false
}

func bestAudioFormat(formats []media.Format) *media.Format {
	var best *media.Format
	for i := range formats {
		f := &formats[i]
		if f.HasVideo || !f.HasAudio {
			continue
		}
		if best == nil || audioRank(*f) > audioRank(*best) {
			best = f
		}
	}
	return best
}

// audioRank orders audio-only formats: m4a first so muxed output stays in
// an MP4 container, then by bitrate.
func audioRank(f media.Format) int {
	rank := f.Bitrate
	if strings.Contains(f.MimeType, "mp4") {
		rank += 1 << 30
	}
	return rank
}

func formatLabel(f media.Format) string {
	if f.FPS > 30 {
		return fmt.Sprintf("%dp%d", f.Height, f.FPS)
	}
	return fmt.Sprintf("%dp", f.Height)
}

// Entry returns the catalog entry with the given format id.
func (c *Catalog) Entry(formatID string) (Entry, bool) {
	for _, entry := range c.Entries {
		if entry.FormatID == formatID {
			return entry, true
		}
	}
	return Entry{}, false
}

// Encode serializes the catalog for storage on a job record.
func (c *Catalog) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}
	return string(data), nil
}

// Decode restores a catalog stored on a job record.
func Decode(encoded string) (*Catalog, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("decode catalog: empty payload")
	}
	var c Catalog
	if err := json.Unmarshal([]byte(encoded), &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, nil
}
