package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ytcourier/internal/config"
)

const userAgent = "ytcourier/0.1.0"

// Service defines the operator notification surface. User-facing messages
// travel over the transport; these go to the operator's ntfy topic.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, botName string) error
	NotifyJobCompleted(ctx context.Context, title string, sizeBytes int64) error
	NotifyJobFailed(ctx context.Context, title string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// Without a topic a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, botName string) error {
	return n.send(ctx, payload{
		title:   "ytcourier - Started",
		message: fmt.Sprintf("Daemon started, serving @%s", strings.TrimSpace(botName)),
		tags:    []string{"ytcourier", "daemon", "started"},
	})
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title string, sizeBytes int64) error {
	return n.send(ctx, payload{
		title:   "ytcourier - Delivered",
		message: fmt.Sprintf("Delivered: %s (%d bytes)", strings.TrimSpace(title), sizeBytes),
		tags:    []string{"ytcourier", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "ytcourier - Failed",
		message:  fmt.Sprintf("Failed: %s: %s", strings.TrimSpace(title), detail),
		tags:     []string{"ytcourier", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "ytcourier - Test",
		message:  "Notification system test",
		tags:     []string{"ytcourier", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context, string) error       { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, int64) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error    { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
