package jobs

import (
	"context"
	"time"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestMessage represents one raw message to run through the
	// ingestion pipeline.
	JobTypeIngestMessage JobType = "ingest_message"
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

// IngestMessageJob carries one raw message from a source adapter to the
// pipeline workers. Adapters publish these instead of calling the pipeline
// directly so a slow insert for one message never serializes the adapters
// against each other.
type IngestMessageJob struct {
	JobID string `json:"job_id"`

	// UserID is the account the message belongs to.
	UserID string `json:"user_id"`

	// Adapter names the source channel that observed the message.
	Adapter string `json:"adapter"`

	// Message is the raw observation to ingest.
	Message domain.RawMessage `json:"message"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount / MaxRetries drive the queue's retry machinery. Ingestion
	// jobs keep MaxRetries at 0: a failed message is retried by the next
	// watermark-bounded scan, not by the queue.
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
func (j *IngestMessageJob) GetID() string { return j.JobID }

// GetType implements the Job interface.
func (j *IngestMessageJob) GetType() JobType { return JobTypeIngestMessage }

// GetStatus implements the Job interface.
func (j *IngestMessageJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngestMessage publishes a raw-message ingestion job.
	PublishIngestMessage(ctx context.Context, job *IngestMessageJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. It should return an
// error only when the job failed and should be retried by the queue.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestMessageJob) error
	GetJob(ctx context.Context, jobID string) (*IngestMessageJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestMessageJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Adapter filters jobs by source adapter name.
	Adapter string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results; zero means no limit.
	Limit int
}
