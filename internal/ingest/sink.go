package ingest

import (
	"context"
	"fmt"

	"github.com/sheu-1/flow-sub001/internal/domain"
	"github.com/sheu-1/flow-sub001/internal/jobs"
)

// QueueSink is the source.Sink the adapters feed. It publishes each raw
// message as an ingestion job so adapter loops return immediately and
// per-message processing never serializes the adapters against each other.
type QueueSink struct {
	userID string
	queue  jobs.Publisher
}

// NewQueueSink creates the sink for one user's session queue.
func NewQueueSink(userID string, queue jobs.Publisher) *QueueSink {
	return &QueueSink{userID: userID, queue: queue}
}

// Submit implements source.Sink.
func (s *QueueSink) Submit(ctx context.Context, adapter string, msg domain.RawMessage) error {
	return s.queue.PublishIngestMessage(ctx, &jobs.IngestMessageJob{
		UserID:  s.userID,
		Adapter: adapter,
		Message: msg,
	})
}

// DirectSink runs each submitted message through the session inline. A
// one-shot backfill has no adapter loops to keep responsive, so it skips
// the queue indirection.
type DirectSink struct {
	session *Session
}

// NewDirectSink creates the inline sink.
func NewDirectSink(session *Session) *DirectSink {
	return &DirectSink{session: session}
}

// Submit implements source.Sink. Outcomes other than failure are normal
// results and surface no error to the scanner.
func (s *DirectSink) Submit(ctx context.Context, adapter string, msg domain.RawMessage) error {
	_, err := s.session.Process(ctx, adapter, msg)
	return err
}

// Handler adapts a session into the queue's job handler. Process already
// isolates per-message failures; an error return here only marks the job
// failed in the job store (ingestion jobs carry MaxRetries 0, the
// watermark-bounded scans are the retry path).
func Handler(session *Session) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestMessageJob)
		if !ok {
			return fmt.Errorf("Handler: unexpected job type: %T", job)
		}
		_, err := session.Process(ctx, ingestJob.Adapter, ingestJob.Message)
		return err
	}
}
