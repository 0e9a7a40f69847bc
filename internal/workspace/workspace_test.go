package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytcourier/internal/workspace"
)

func TestCreateAndRemove(t *testing.T) {
	root := t.TempDir()
	manager := workspace.NewManager(root, nil)

	path, err := manager.Create("job-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Dir(path) != root {
		t.Errorf("workspace %s not under root %s", path, root)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("workspace missing: %v", err)
	}

	if err := os.WriteFile(filepath.Join(path, "partial.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := manager.Remove("job-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("workspace should be gone")
	}

	// Removing again is a no-op.
	if err := manager.Remove("job-1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestCreateRejectsEmptyJobID(t *testing.T) {
	manager := workspace.NewManager(t.TempDir(), nil)
	if _, err := manager.Create("  "); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestSweepRemovesOldDirectories(t *testing.T) {
	root := t.TempDir()
	manager := workspace.NewManager(root, nil)

	stale := filepath.Join(root, "stale-job")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(root, "fresh-job")
	if err := os.Mkdir(fresh, 0o755); err != nil {
		t.Fatal(err)
	}

	// Loose files under the root are ignored.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := manager.Sweep(context.Background(), 24*time.Hour)
	if len(result.Errors) != 0 {
		t.Fatalf("sweep errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("removed = %v, want [%s]", result.Removed, stale)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh workspace should survive")
	}
}

func TestSweepMissingRoot(t *testing.T) {
	manager := workspace.NewManager(filepath.Join(t.TempDir(), "absent"), nil)
	result := manager.Sweep(context.Background(), time.Hour)
	if len(result.Errors) != 0 || len(result.Removed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
