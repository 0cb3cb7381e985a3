// Package jobs defines the async ingestion job model and the queue
// abstractions it runs on.
package jobs

import (
	"context"
	"time"
)

// JobType identifies what a job does.
type JobType string

const (
	JobTypeIngestDocument JobType = "ingest_document"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestDocumentJob asks the worker pool to ingest an uploaded document for a
// user.
type IngestDocumentJob struct {
	JobID      string `json:"job_id"`
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	GCSURI     string `json:"gcs_uri"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is the generic surface the queue hands to handlers.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IngestDocumentJob) GetID() string {
	return j.JobID
}

func (j *IngestDocumentJob) GetType() JobType {
	return JobTypeIngestDocument
}

func (j *IngestDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues ingestion jobs. The abstraction keeps the transport
// swappable (in-memory now, Cloud Tasks or Pub/Sub later).
type Publisher interface {
	PublishIngestDocument(ctx context.Context, job *IngestDocumentJob) error
	Close() error
}

// Consumer runs jobs from the queue through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error means the job failed and may
// be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for the status endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestDocumentJob) error
	GetJob(ctx context.Context, jobID string) (*IngestDocumentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestDocumentJob, error)
}

// JobFilter narrows a ListJobs call.
type JobFilter struct {
	UserID     string
	DocumentID string
	Status     JobStatus
	Limit      int
	Offset     int
}
