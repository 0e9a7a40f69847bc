package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytcourier/internal/config"
	"ytcourier/internal/daemon"
	"ytcourier/internal/ipc"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/testsupport"
	"ytcourier/internal/transport"
	"ytcourier/internal/workflow"
	"ytcourier/internal/workspace"
)

type idleBot struct{}

func (idleBot) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (idleBot) Username() string { return "testbot" }

type silentMessenger struct{}

func (silentMessenger) SendText(context.Context, int64, string) (int, error) { return 1, nil }

func (silentMessenger) EditText(context.Context, int64, int, string) error { return nil }

func (silentMessenger) SendSelection(context.Context, int64, string, []transport.SelectionOption) (int, error) {
	return 1, nil
}

func (silentMessenger) ClearSelection(context.Context, int64, int) error { return nil }

func (silentMessenger) SendVideo(context.Context, int64, string, string) error { return nil }

func (silentMessenger) SendAudio(context.Context, int64, transport.Audio) error { return nil }

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobstore.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("YTCOURIER_BOT_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "ytcourier", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}

	spaces := workspace.NewManager(cfg.Paths.WorkspaceRoot, nil)
	mgr := workflow.NewManager(cfg, store, nil, nil, nil, silentMessenger{}, spaces, nil, nil)

	d, err := daemon.New(cfg, store, nil, mgr, idleBot{}, spaces, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	time.Sleep(50 * time.Millisecond)

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
workspace_root = %q
log_dir = %q

[telegram]
bot_token = "test-token"
whitelist_enabled = false

[store]
dsn = %q
`, cfg.Paths.WorkspaceRoot, cfg.Paths.LogDir, cfg.Store.DSN)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
