package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	BotUsername  string             `json:"bot_username"`
	JobStats     map[string]int     `json:"job_stats"`
	TotalJobs    int                `json:"total_jobs"`
	StoreDSN     string             `json:"store_dsn"`
	LockPath     string             `json:"lock_path"`
	Dependencies []DependencyStatus `json:"dependencies"`
	PID          int                `json:"pid"`
}

// JobSummary is the wire representation of a job record.
type JobSummary struct {
	ID           string  `json:"id"`
	OwnerID      int64   `json:"owner_id"`
	Status       string  `json:"status"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	DeliveryKind string  `json:"delivery_kind"`
	Phase        string  `json:"phase"`
	Percent      float64 `json:"percent"`
	ErrorMessage string  `json:"error_message"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// JobsListRequest filters job listing by status.
type JobsListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobsListResponse contains job entries.
type JobsListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job entry.
type JobDescribeResponse struct {
	Job JobSummary `json:"job"`
}

// JobCancelRequest requests cancellation of a job.
type JobCancelRequest struct {
	ID string `json:"id"`
}

// JobCancelResponse reports whether the job was flagged for cancellation.
type JobCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// JobsClearRequest removes finished job records.
type JobsClearRequest struct{}

// JobsClearResponse reports how many records were removed.
type JobsClearResponse struct {
	Removed int64 `json:"removed"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
