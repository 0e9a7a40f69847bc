package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ytcourier/internal/config"
	"ytcourier/internal/services"
)

// ErrNotFound is returned when a job lookup misses.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned for illegal lifecycle edges.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages job state backed by SQLite. The default DSN of ":memory:"
// keeps all state process-local; it is rebuilt from nothing on restart.
type Store struct {
	db  *sql.DB
	dsn string
}

// Open initializes the job store and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	return OpenDSN(cfg.Store.DSN)
}

// OpenDSN initializes a job store against an explicit SQLite DSN.
func OpenDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every query sees the same database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, dsn: dsn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewJob admits a new job for owner. Admission is atomic: if the owner
// already has a job in any non-terminal status the insert is rejected with
// services.ErrAlreadyActive and the existing job is returned alongside the
// error.
func (s *Store) NewJob(ctx context.Context, ownerID, chatID int64, url string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admission tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := scanJob(tx.QueryRowContext(
		ctx,
		selectJobSQL+` WHERE owner_id = ? AND status NOT IN (?, ?, ?) LIMIT 1`,
		ownerID, StatusCompleted, StatusFailed, StatusCancelled,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check active job: %w", err)
	}
	if err == nil {
		return existing, services.ErrAlreadyActive
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO jobs (id, owner_id, chat_id, url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, chatID, url, StatusReceived, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admission tx: %w", err)
	}

	return s.GetByID(ctx, id)
}

const selectJobSQL = `SELECT id, owner_id, chat_id, url, video_id, title, status,
    delivery_kind, chosen_format_id, catalog_json, selection_msg_id,
    progress_phase, progress_percent, progress_message,
    workspace_path, output_path, error_message, cancel_requested,
    created_at, updated_at
    FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job             Job
		cancelRequested int
		createdAt       string
		updatedAt       string
	)
	err := row.Scan(
		&job.ID, &job.OwnerID, &job.ChatID, &job.URL, &job.VideoID, &job.Title,
		&job.Status, &job.DeliveryKind, &job.ChosenFormatID, &job.CatalogJSON,
		&job.SelectionMsgID, &job.ProgressPhase, &job.ProgressPercent,
		&job.ProgressMessage, &job.WorkspacePath, &job.OutputPath,
		&job.ErrorMessage, &cancelRequested, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.CancelRequested = cancelRequested != 0
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

// GetByID fetches a single job.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, selectJobSQL+` WHERE id = ?`, id))
}

// ActiveForOwner returns the owner's non-terminal job, or ErrNotFound.
func (s *Store) ActiveForOwner(ctx context.Context, ownerID int64) (*Job, error) {
	return scanJob(s.db.QueryRowContext(
		ctx,
		selectJobSQL+` WHERE owner_id = ? AND status NOT IN (?, ?, ?) LIMIT 1`,
		ownerID, StatusCompleted, StatusFailed, StatusCancelled,
	))
}

// List returns jobs ordered by creation time, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := selectJobSQL
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Transition moves a job along a legal lifecycle edge. The job's updated
// fields (title, paths, error message, progress) are persisted alongside
// the status change.
func (s *Store) Transition(ctx context.Context, job *Job, next Status) error {
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, video_id = ?, title = ?, delivery_kind = ?,
            chosen_format_id = ?, catalog_json = ?, selection_msg_id = ?,
            workspace_path = ?, output_path = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		next, job.VideoID, job.Title, job.DeliveryKind,
		job.ChosenFormatID, job.CatalogJSON, job.SelectionMsgID,
		job.WorkspacePath, job.OutputPath, job.ErrorMessage, now,
		job.ID, job.Status,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s no longer in %s", ErrInvalidTransition, job.ID, job.Status)
	}
	job.Status = next
	return nil
}

// ClaimSelection atomically binds a format choice to a job awaiting
// selection and moves it to Executing. A job in any other status returns
// services.ErrStaleSelection without modifying the row.
func (s *Store) ClaimSelection(ctx context.Context, id, formatID string, kind DeliveryKind) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, chosen_format_id = ?, delivery_kind = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusExecuting, formatID, kind, now, id, StatusAwaitingSelection,
	)
	if err != nil {
		return nil, fmt.Errorf("claim selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim selection: %w", err)
	}
	if affected == 0 {
		return nil, services.ErrStaleSelection
	}
	return s.GetByID(ctx, id)
}

// SetSelectionMessage records the transport message id the format keyboard
// hangs from, so later phases can edit it in place.
func (s *Store) SetSelectionMessage(ctx context.Context, id string, messageID int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET selection_msg_id = ?, updated_at = ? WHERE id = ?`,
		messageID, now, id,
	)
	if err != nil {
		return fmt.Errorf("set selection message: %w", err)
	}
	return nil
}

// UpdateProgress persists the latest progress observation for a job.
func (s *Store) UpdateProgress(ctx context.Context, id, phase string, percent float64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_phase = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		phase, percent, message, now, id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// RequestCancel flags a non-terminal job for cancellation. Workers observe
// the flag at their next checkpoint; the status change to Cancelled happens
// when the worker acknowledges.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		now, id, StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested reads the cancellation flag for a job.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// Remove deletes a terminal job record.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTerminal removes completed, failed, and cancelled job records.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Summarize aggregates job counts per lifecycle state.
func (s *Store) Summarize(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	var snapshot Snapshot
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Snapshot{}, fmt.Errorf("scan summary row: %w", err)
		}
		snapshot.Total += count
		switch status {
		case StatusReceived:
			snapshot.Received = count
		case StatusResolving:
			snapshot.Resolving = count
		case StatusAwaitingSelection:
			snapshot.AwaitingSelection = count
		case StatusExecuting:
			snapshot.Executing = count
		case StatusUploading:
			snapshot.Uploading = count
		case StatusCompleted:
			snapshot.Completed = count
		case StatusFailed:
			snapshot.Failed = count
		case StatusCancelled:
			snapshot.Cancelled = count
		}
	}
	return snapshot, rows.Err()
}
