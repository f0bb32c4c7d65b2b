package domain

// JobStatus enumerates remote job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the job will no longer change on the service side.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus maps the status strings reported by the conversion service.
// Unknown values are treated as running so polling continues.
func ParseJobStatus(raw string) JobStatus {
	switch normalize(raw) {
	case "pending", "queued":
		return JobStatusPending
	case "completed", "complete", "done", "succeeded", "success":
		return JobStatusCompleted
	case "failed", "error":
		return JobStatusFailed
	default:
		return JobStatusRunning
	}
}

// ItemStatus enumerates the state of one constituent item of a job.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
)

// IsTerminal reports whether the item reached success or failure.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusFailed
}

// ParseItemStatus maps per-item status strings reported by the service.
func ParseItemStatus(raw string) ItemStatus {
	switch normalize(raw) {
	case "success", "succeeded", "completed", "complete", "done":
		return ItemStatusSuccess
	case "failed", "error":
		return ItemStatusFailed
	default:
		return ItemStatusPending
	}
}

// ResultItem is the outcome of converting one submitted URL.
type ResultItem struct {
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title,omitempty"`
	Status      ItemStatus `json:"status"`
	DownloadRef string     `json:"download_ref,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Job tracks an asynchronous multi-item conversion on the remote service.
type Job struct {
	ID       string       `json:"id"`
	Status   JobStatus    `json:"status"`
	Progress int          `json:"progress"`
	Items    []ResultItem `json:"items"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Items = append([]ResultItem(nil), j.Items...)
	return &cp
}
