package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidURL marks requests whose URL is not a recognized video link.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnreachable marks failures to reach the extraction backend.
	ErrUnreachable = errors.New("unreachable")
	// ErrNoFormats marks catalogs that are empty after normalization.
	ErrNoFormats = errors.New("no formats found")
	// ErrAlreadyActive marks admission rejections for owners with a live job.
	ErrAlreadyActive = errors.New("job already active")
	// ErrStaleSelection marks selections referencing an unknown format id.
	ErrStaleSelection = errors.New("stale selection")
	// ErrDownloadFailed marks stream fetch failures.
	ErrDownloadFailed = errors.New("download failed")
	// ErrConversionFailed marks mux or transcode failures.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrTooLarge marks outputs exceeding the configured size ceiling.
	ErrTooLarge = errors.New("file too large")
	// ErrCancelled marks user-requested job termination.
	ErrCancelled = errors.New("cancelled")
	// ErrTransport marks delivery failures at the messaging boundary.
	ErrTransport = errors.New("transport error")
	// ErrDiskFull marks workspace writes that ran out of space.
	ErrDiskFull = errors.New("disk full")
	// ErrUnauthorized marks requests from owners outside the allow-list.
	ErrUnauthorized = errors.New("unauthorized")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDownloadFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage translates a job error into the text shown to the requester.
// Cancellation is intentionally neutral; it is an acknowledgment, not a fault.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "That link does not look like a supported video URL. Send a youtube.com or youtu.be link."
	case errors.Is(err, ErrUnreachable):
		return "Could not reach the video service. Try again in a little while."
	case errors.Is(err, ErrNoFormats):
		return "No downloadable formats were found for that video."
	case errors.Is(err, ErrAlreadyActive):
		return "You already have a download in progress. Wait for it to finish or cancel it first."
	case errors.Is(err, ErrStaleSelection):
		return "That choice has expired. Send the link again to get fresh options."
	case errors.Is(err, ErrTooLarge):
		return "The file exceeds the size limit and cannot be delivered."
	case errors.Is(err, ErrConversionFailed):
		return "The download finished but converting the media failed."
	case errors.Is(err, ErrDownloadFailed):
		return "Downloading the media failed."
	case errors.Is(err, ErrDiskFull):
		return "The server ran out of disk space while processing the file."
	case errors.Is(err, ErrTransport):
		return "Sending the file failed."
	case errors.Is(err, ErrCancelled):
		return "Download cancelled."
	default:
		return "Something went wrong while processing the request."
	}
}

// Kind returns a short classification token for structured logs.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrNoFormats):
		return "no_formats"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrStaleSelection):
		return "stale_selection"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrConversionFailed):
		return "conversion_failed"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, ErrDiskFull):
		return "disk_full"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
