package transport

import "context"

// SelectionOption is one button offered on a format keyboard.
type SelectionOption struct {
	JobID     string
	FormatID  string
	Label     string
	SizeBytes int64
	Estimated bool
}

// Audio carries the metadata delivered alongside an MP3 file.
type Audio struct {
	Path          string
	Title         string
	Performer     string
	ThumbnailPath string
	DurationSecs  int
}

// Messenger delivers user-facing messages and files. Implementations map
// failures to services.ErrTransport so callers can retry uploads.
type Messenger interface {
	// SendText posts a message and returns its id for later edits.
	SendText(ctx context.Context, chatID int64, text string) (int, error)

	// EditText replaces the text of a previously sent message.
	EditText(ctx context.Context, chatID int64, messageID int, text string) error

	// SendSelection posts a message with a format keyboard attached.
	SendSelection(ctx context.Context, chatID int64, text string, options []SelectionOption) (int, error)

	// ClearSelection removes the keyboard from a selection message once a
	// choice is claimed or the job ends.
	ClearSelection(ctx context.Context, chatID int64, messageID int) error

	// SendVideo uploads a video file with a caption.
	SendVideo(ctx context.Context, chatID int64, path, caption string) error

	// SendAudio uploads an audio file with tag metadata and cover art.
	SendAudio(ctx context.Context, chatID int64, audio Audio) error
}

// Selection is a decoded format choice callback.
type Selection struct {
	JobID    string
	FormatID string
}

// Handler receives decoded user interactions from a transport front end.
type Handler interface {
	// HandleURL admits a new job for a pasted URL.
	HandleURL(ctx context.Context, ownerID, chatID int64, text string)

	// HandleSelection binds a format choice to a job. The returned text is
	// shown as the callback acknowledgement.
	HandleSelection(ctx context.Context, ownerID int64, sel Selection) string

	// HandleCancel requests cancellation of the owner's active job.
	HandleCancel(ctx context.Context, ownerID, chatID int64)

	// HandleStatus reports the owner's active job, if any.
	HandleStatus(ctx context.Context, ownerID, chatID int64)
}
