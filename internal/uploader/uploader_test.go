package uploader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytcourier/internal/jobstore"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
	"ytcourier/internal/uploader"
)

type flakyMessenger struct {
	videoCalls int
	audioCalls int
	failFirst  int
}

func (m *flakyMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return 1, nil
}

func (m *flakyMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	return nil
}

func (m *flakyMessenger) SendSelection(ctx context.Context, chatID int64, text string, options []transport.SelectionOption) (int, error) {
	return 1, nil
}

func (m *flakyMessenger) ClearSelection(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (m *flakyMessenger) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	m.videoCalls++
	if m.videoCalls <= m.failFirst {
		return services.Wrap(services.ErrTransport, "fake", "send_video", "connection reset", nil)
	}
	return nil
}

func (m *flakyMessenger) SendAudio(ctx context.Context, chatID int64, audio transport.Audio) error {
	m.audioCalls++
	return nil
}

func writeOutput(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeliverVideo(t *testing.T) {
	messenger := &flakyMessenger{}
	up := uploader.New(messenger, 2_000_000, nil)

	var finals int
	err := up.Deliver(context.Background(), uploader.Delivery{
		ChatID:  1,
		Kind:    jobstore.DeliveryVideo,
		Path:    writeOutput(t, 1000),
		Caption: "Sample",
	}, func(phase string, percent float64) {
		if percent == 100 {
			finals++
		}
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if messenger.videoCalls != 1 {
		t.Errorf("video calls = %d, want 1", messenger.videoCalls)
	}
	if finals != 1 {
		t.Errorf("final progress events = %d, want exactly 1", finals)
	}
}

func TestDeliverAudio(t *testing.T) {
	messenger := &flakyMessenger{}
	up := uploader.New(messenger, 2_000_000, nil)

	err := up.Deliver(context.Background(), uploader.Delivery{
		ChatID: 1,
		Kind:   jobstore.DeliveryAudio,
		Path:   writeOutput(t, 1000),
		Title:  "Sample",
	}, nil)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if messenger.audioCalls != 1 {
		t.Errorf("audio calls = %d, want 1", messenger.audioCalls)
	}
}

func TestDeliverRetriesTransportErrorOnce(t *testing.T) {
	messenger := &flakyMessenger{failFirst: 1}
	up := uploader.New(messenger, 2_000_000, nil)
	up.SetRetryDelay(time.Millisecond)

	err := up.Deliver(context.Background(), uploader.Delivery{
		ChatID: 1,
		Kind:   jobstore.DeliveryVideo,
		Path:   writeOutput(t, 1000),
	}, nil)
	if err != nil {
		t.Fatalf("Deliver after retry: %v", err)
	}
	if messenger.videoCalls != 2 {
		t.Errorf("video calls = %d, want 2", messenger.videoCalls)
	}
}

func TestDeliverGivesUpAfterSecondFailure(t *testing.T) {
	messenger := &flakyMessenger{failFirst: 2}
	up := uploader.New(messenger, 2_000_000, nil)
	up.SetRetryDelay(time.Millisecond)

	var finals int
	err := up.Deliver(context.Background(), uploader.Delivery{
		ChatID: 1,
		Kind:   jobstore.DeliveryVideo,
		Path:   writeOutput(t, 1000),
	}, func(phase string, percent float64) {
		if percent == 100 {
			finals++
		}
	})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if messenger.videoCalls != 2 {
		t.Errorf("video calls = %d, want 2", messenger.videoCalls)
	}
	if finals != 0 {
		t.Errorf("final progress events = %d on failure, want 0", finals)
	}
}

func TestDeliverRejectsOversizedFile(t *testing.T) {
	messenger := &flakyMessenger{}
	up := uploader.New(messenger, 500, nil)

	err := up.Deliver(context.Background(), uploader.Delivery{
		ChatID: 1,
		Kind:   jobstore.DeliveryVideo,
		Path:   writeOutput(t, 1000),
	}, nil)
	if !errors.Is(err, services.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if messenger.videoCalls != 0 {
		t.Errorf("video calls = %d, want 0", messenger.videoCalls)
	}
}
