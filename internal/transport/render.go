package transport

import (
	"fmt"
	"strings"

	"ytcourier/internal/fileutil"
)

const progressBarWidth = 20

// RenderProgress formats a phase and percentage as a fixed-width text bar,
// e.g. "Downloading\n[■■■■■■■■□□□□□□□□□□□□] 40%".
func RenderProgress(phase string, percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * progressBarWidth)
	bar := strings.Repeat("■", filled) + strings.Repeat("□", progressBarWidth-filled)
	return fmt.Sprintf("%s\n[%s] %.0f%%", phase, bar, percent)
}

// OptionLabel formats one keyboard button: the quality label plus the
// expected file size when known, with a tilde marking estimates.
func OptionLabel(opt SelectionOption) string {
	if opt.SizeBytes <= 0 {
		return opt.Label
	}
	size := fileutil.HumanSize(opt.SizeBytes)
	if opt.Estimated {
		return fmt.Sprintf("%s (~%s)", opt.Label, size)
	}
	return fmt.Sprintf("%s (%s)", opt.Label, size)
}

// RenderSelectionPrompt formats the message a format keyboard hangs from.
func RenderSelectionPrompt(title string, durationSecs int) string {
	var b strings.Builder
	b.WriteString(title)
	if durationSecs > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", formatDuration(durationSecs)))
	}
	b.WriteString("\nChoose a quality:")
	return b.String()
}

func formatDuration(totalSecs int) string {
	hours := totalSecs / 3600
	minutes := (totalSecs % 3600) / 60
	seconds := totalSecs % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
