package models

import "time"

// Job statuses as reported over the progress channel and stored in the job store.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobError      = "error"
)

// Job tracks one matching run submitted through the API.
type Job struct {
	ID        string    `json:"job_id"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressUpdate is one broadcast frame on the progress channel.
type ProgressUpdate struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}
