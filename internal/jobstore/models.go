package jobstore

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a delivery job.
type Status string

const (
	StatusReceived          Status = "received"
	StatusResolving         Status = "resolving"
	StatusAwaitingSelection Status = "awaiting_selection"
	StatusExecuting         Status = "executing"
	StatusUploading         Status = "uploading"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

var allStatuses = []Status{
	StatusReceived,
	StatusResolving,
	StatusAwaitingSelection,
	StatusExecuting,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions enumerates every legal status edge. Failed and
// Cancelled are reachable from any non-terminal state and are handled
// separately in CanTransition.
var allowedTransitions = map[Status][]Status{
	StatusReceived:          {StatusResolving},
	StatusResolving:         {StatusAwaitingSelection},
	StatusAwaitingSelection: {StatusExecuting},
	StatusExecuting:         {StatusUploading},
	StatusUploading:         {StatusCompleted},
}

// ParseStatus converts user input to a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a job in this status counts against the
// per-owner admission limit.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// edge. Any non-terminal status may move to Failed or Cancelled.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed || next == StatusCancelled {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// DeliveryKind distinguishes the two delivery products.
type DeliveryKind string

const (
	DeliveryVideo DeliveryKind = "video"
	DeliveryAudio DeliveryKind = "audio"
)

// Job represents a single request lifecycle from URL receipt to delivery.
type Job struct {
	ID              string
	OwnerID         int64
	ChatID          int64
	URL             string
	VideoID         string
	Title           string
	Status          Status
	DeliveryKind    DeliveryKind
	ChosenFormatID  string
	CatalogJSON     string
	SelectionMsgID  int
	ProgressPhase   string
	ProgressPercent float64
	ProgressMessage string
	WorkspacePath   string
	OutputPath      string
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot summarizes store contents per key lifecycle states.
type Snapshot struct {
	Total             int
	Received          int
	Resolving         int
	AwaitingSelection int
	Executing         int
	Uploading         int
	Completed         int
	Failed            int
	Cancelled         int
}
