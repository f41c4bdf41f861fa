// Package jobs defines the asynchronous receipt-analysis work items and the
// queue abstractions they move through.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAnalyzeReceipt represents a receipt image analysis job.
	JobTypeAnalyzeReceipt JobType = "analyze_receipt"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// AnalyzeReceiptJob represents a job to analyze one uploaded receipt image.
type AnalyzeReceiptJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// ReceiptID is the ID of the receipt row awaiting extracted fields.
	ReceiptID string `json:"receipt_id"`

	// UserID owns the receipt; extraction results are written back under it.
	UserID string `json:"user_id"`

	// ImageURI is the gs:// URI of the image to analyze.
	ImageURI string `json:"image_uri"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *AnalyzeReceiptJob) GetID() string { return j.JobID }

// GetType implements the Job interface.
func (j *AnalyzeReceiptJob) GetType() JobType { return JobTypeAnalyzeReceipt }

// GetStatus implements the Job interface.
func (j *AnalyzeReceiptJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction allows swapping the in-memory queue for Cloud Tasks or
// Pub/Sub without touching the handlers.
type Publisher interface {
	// PublishAnalyzeReceipt publishes a receipt analysis job.
	PublishAnalyzeReceipt(ctx context.Context, job *AnalyzeReceiptJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so clients can poll analysis progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *AnalyzeReceiptJob) error
	GetJob(ctx context.Context, jobID string) (*AnalyzeReceiptJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalyzeReceiptJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// ReceiptID filters jobs by receipt ID.
	ReceiptID string

	// Status filters jobs by status.
	Status JobStatus

	Limit  int
	Offset int
}
