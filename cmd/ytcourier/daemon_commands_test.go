package main

import (
	"path/filepath"
	"testing"

	"ytcourier/internal/testsupport"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] pid")
	requireContains(t, out, "@testbot")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "No jobs recorded")
}

func TestStopCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YTCOURIER_BOT_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(home, "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"status"}, "/nonexistent/ytcourier.sock", configPath)
	if err == nil {
		t.Fatal("expected error when socket is missing")
	}
	requireContains(t, err.Error(), "start the daemon")
}

func TestBuildJobStatsRows(t *testing.T) {
	stats := map[string]int{
		"completed":          3,
		"failed":             1,
		"executing":          2,
		"awaiting_selection": 0,
	}
	rows := buildJobStatsRows(stats)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "executing" || rows[0][1] != "2" {
		t.Fatalf("expected executing first, got %v", rows[0])
	}
	if rows[1][0] != "completed" {
		t.Fatalf("expected completed second, got %v", rows[1])
	}
	if rows[2][0] != "failed" {
		t.Fatalf("expected failed last, got %v", rows[2])
	}
}

func TestTestNotifyCommandWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notification not sent")
}
