package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ProgressEditor throttles edits to a single progress message. Flood limits
// make per-chunk edits impossible, so updates are dropped unless the
// percentage moved by at least minDelta and the rate limiter has capacity.
// Phase changes and the 100% terminal update always go through.
type ProgressEditor struct {
	messenger   Messenger
	chatID      int64
	messageID   int
	limiter     *rate.Limiter
	minDelta    float64
	lastPhase   string
	lastPercent float64
	sentFinal   bool
}

// NewProgressEditor wraps an existing message for throttled progress edits.
func NewProgressEditor(messenger Messenger, chatID int64, messageID int, interval time.Duration, minDelta float64) *ProgressEditor {
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressEditor{
		messenger:   messenger,
		chatID:      chatID,
		messageID:   messageID,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		minDelta:    minDelta,
		lastPercent: -1,
	}
}

// Update edits the progress message if the observation is worth showing.
// Returns nil when the update was throttled away.
func (e *ProgressEditor) Update(ctx context.Context, phase string, percent float64) error {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	final := percent >= 100
	phaseChanged := phase != e.lastPhase

	if final {
		if e.sentFinal && !phaseChanged {
			return nil
		}
	} else if !phaseChanged {
		if percent-e.lastPercent < e.minDelta {
			return nil
		}
		if !e.limiter.Allow() {
			return nil
		}
	}

	if err := e.messenger.EditText(ctx, e.chatID, e.messageID, RenderProgress(phase, percent)); err != nil {
		return err
	}
	e.lastPhase = phase
	e.lastPercent = percent
	if final {
		e.sentFinal = true
	}
	return nil
}

// Finish replaces the progress message with terminal text.
func (e *ProgressEditor) Finish(ctx context.Context, text string) error {
	return e.messenger.EditText(ctx, e.chatID, e.messageID, text)
}

// MessageID returns the id of the message being edited.
func (e *ProgressEditor) MessageID() int {
	return e.messageID
}
