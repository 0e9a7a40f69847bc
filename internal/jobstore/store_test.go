package jobstore_test

import (
	"context"
	"errors"
	"testing"

	"ytcourier/internal/jobstore"
	"ytcourier/internal/services"
)

func newStore(t *testing.T) *jobstore.Store {
	t.Helper()
	store, err := jobstore.OpenDSN(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestNewJobAdmission(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 42, 100, "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.Status != jobstore.StatusReceived {
		t.Fatalf("status = %s, want received", job.Status)
	}

	// Same owner with an active job must be rejected, and the rejection
	// carries the existing job.
	existing, err := store.NewJob(ctx, 42, 100, "https://youtu.be/def")
	if !errors.Is(err, services.ErrAlreadyActive) {
		t.Fatalf("err = %v, want ErrAlreadyActive", err)
	}
	if existing == nil || existing.ID != job.ID {
		t.Fatalf("expected existing job %s back, got %+v", job.ID, existing)
	}

	// A different owner is unaffected.
	if _, err := store.NewJob(ctx, 43, 101, "https://youtu.be/def"); err != nil {
		t.Fatalf("NewJob other owner: %v", err)
	}
}

func TestAdmissionReleasedAfterTerminal(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 7, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.Transition(ctx, job, jobstore.StatusFailed); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	if _, err := store.NewJob(ctx, 7, 1, "https://youtu.be/def"); err != nil {
		t.Fatalf("NewJob after terminal: %v", err)
	}
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := store.Transition(ctx, job, jobstore.StatusUploading); !errors.Is(err, jobstore.ErrInvalidTransition) {
		t.Fatalf("received -> uploading: err = %v, want ErrInvalidTransition", err)
	}

	for _, next := range []jobstore.Status{
		jobstore.StatusResolving,
		jobstore.StatusAwaitingSelection,
		jobstore.StatusExecuting,
		jobstore.StatusUploading,
		jobstore.StatusCompleted,
	} {
		if err := store.Transition(ctx, job, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	// Terminal states accept nothing further.
	if err := store.Transition(ctx, job, jobstore.StatusFailed); !errors.Is(err, jobstore.ErrInvalidTransition) {
		t.Fatalf("completed -> failed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestClaimSelection(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.Transition(ctx, job, jobstore.StatusResolving); err != nil {
		t.Fatal(err)
	}
	if err := store.Transition(ctx, job, jobstore.StatusAwaitingSelection); err != nil {
		t.Fatal(err)
	}

	claimed, err := store.ClaimSelection(ctx, job.ID, "137", jobstore.DeliveryVideo)
	if err != nil {
		t.Fatalf("ClaimSelection: %v", err)
	}
	if claimed.Status != jobstore.StatusExecuting {
		t.Errorf("status = %s, want executing", claimed.Status)
	}
	if claimed.ChosenFormatID != "137" {
		t.Errorf("chosen format = %q, want 137", claimed.ChosenFormatID)
	}

	// A second tap on the same keyboard arrives after the claim.
	if _, err := store.ClaimSelection(ctx, job.ID, "22", jobstore.DeliveryVideo); !errors.Is(err, services.ErrStaleSelection) {
		t.Fatalf("second claim err = %v, want ErrStaleSelection", err)
	}
}

func TestRequestCancel(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	flagged, err := store.RequestCancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if !flagged {
		t.Fatal("expected cancel flag to be set")
	}

	requested, err := store.CancelRequested(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !requested {
		t.Fatal("CancelRequested = false after flagging")
	}

	if err := store.Transition(ctx, job, jobstore.StatusCancelled); err != nil {
		t.Fatalf("Transition to cancelled: %v", err)
	}

	// Terminal jobs cannot be re-flagged.
	flagged, err = store.RequestCancel(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if flagged {
		t.Fatal("cancel flag set on terminal job")
	}
}

func TestProgressAndSummarize(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := store.UpdateProgress(ctx, job.ID, "downloading", 42.5, "Downloading..."); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.ProgressPhase != "downloading" || reloaded.ProgressPercent != 42.5 {
		t.Errorf("progress = %s/%.1f, want downloading/42.5", reloaded.ProgressPhase, reloaded.ProgressPercent)
	}

	snapshot, err := store.Summarize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Total != 1 {
		t.Errorf("total = %d, want 1", snapshot.Total)
	}
}

func TestRemove(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.Remove(ctx, job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.GetByID(ctx, job.ID); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("GetByID after remove: err = %v, want ErrNotFound", err)
	}
	if err := store.Remove(ctx, job.ID); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("second Remove: err = %v, want ErrNotFound", err)
	}
}

func TestClearTerminal(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	finished, err := store.NewJob(ctx, 1, 1, "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.Transition(ctx, finished, jobstore.StatusCancelled); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	active, err := store.NewJob(ctx, 2, 2, "https://youtu.be/def")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.GetByID(ctx, finished.ID); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("finished job still present: err = %v", err)
	}
	if _, err := store.GetByID(ctx, active.ID); err != nil {
		t.Fatalf("active job removed: %v", err)
	}
}
