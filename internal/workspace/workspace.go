// Package workspace manages per-job scratch directories under a single
// root. Every job gets an isolated directory that is removed when the job
// reaches a terminal state; leftovers from unclean shutdowns are swept at
// startup.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytcourier/internal/logging"
)

// Manager creates and removes job workspaces.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager constructs a Manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{root: root, logger: logger}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Create makes an empty workspace directory for a job and returns its path.
func (m *Manager) Create(jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", fmt.Errorf("create workspace: empty job id")
	}
	path := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes a job workspace and everything in it. Removing a
// workspace that is already gone is not an error.
func (m *Manager) Remove(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return nil
	}
	path := filepath.Join(m.root, jobID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove workspace %s: %w", path, err)
	}
	return nil
}

// SweepResult contains the outcome of a startup sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes leftover workspace directories older than maxAge. Job
// state does not survive a restart, so anything found under the root at
// startup belongs to no live job; the age guard only protects directories
// another process might still be writing.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) SweepResult {
	result := SweepResult{}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: m.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(m.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			m.logger.Warn("failed to remove leftover workspace",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_sweep_failed"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		m.logger.Info("removed leftover workspace",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}
	return result
}
