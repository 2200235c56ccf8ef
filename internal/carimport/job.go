package carimport

import "time"

// JobStatus mirrors the Rust reference's JobStatus enum: a CAR import
// job moves pending -> processing -> {completed, failed} and never
// backward.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one CAR import request, enqueued by request_id.
type Job struct {
	RequestID   string    `json:"request_id"`
	Identity    string    `json:"identity"`
	Since       string    `json:"since,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// JobProgress reports how far a job has gotten, for a status poller.
type JobProgress struct {
	Step            string `json:"step"`
	UserDID         string `json:"user_did,omitempty"`
	PDSHost         string `json:"pds_host,omitempty"`
	CARSizeBytes    int64  `json:"car_size_bytes,omitempty"`
	BlocksProcessed int    `json:"blocks_processed,omitempty"`
}

// JobStatusRecord is the value stored at the job's status key.
type JobStatusRecord struct {
	Status       JobStatus    `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Progress     *JobProgress `json:"progress,omitempty"`
}
