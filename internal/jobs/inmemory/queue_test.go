package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sheu-1/flow-sub001/internal/domain"
	"github.com/sheu-1/flow-sub001/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)

	var mu sync.Mutex
	var processed []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		ij := job.(*jobs.IngestMessageJob)
		mu.Lock()
		processed = append(processed, ij.Message.Body)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, body := range []string{"one", "two", "three"} {
		err := q.PublishIngestMessage(ctx, &jobs.IngestMessageJob{
			UserID:  "user-1",
			Adapter: "poller",
			Message: domain.RawMessage{Body: body},
		})
		if err != nil {
			t.Fatalf("PublishIngestMessage(%q): %v", body, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(processed)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("processed %d jobs, want 3", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	done, err := store.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(done) != 3 {
		t.Errorf("completed jobs in store = %d, want 3", len(done))
	}
}

func TestQueue_HandlerFailureMarksJobFailed(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("pipeline failure")
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// MaxRetries stays 0: a failed message is re-observed by the next
	// scan, not retried by the queue.
	job := &jobs.IngestMessageJob{
		UserID:  "user-1",
		Adapter: "listener",
		Message: domain.RawMessage{Body: "will fail"},
	}
	if err := q.PublishIngestMessage(ctx, job); err != nil {
		t.Fatalf("PublishIngestMessage: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err == nil && saved.Status == jobs.JobStatusFailed {
			if saved.Error == "" {
				t.Error("failed job should carry the error message")
			}
			if saved.RetryCount != 0 {
				t.Errorf("RetryCount = %d, want 0", saved.RetryCount)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached failed status")
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_StopDrainsInFlightJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store)

	release := make(chan struct{})
	ctxErrs := make(chan error, 1)

	// Workers run on a context that shutdown does not cancel, matching
	// how the daemon wires them up.
	if err := q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		<-release
		ctxErrs <- ctx.Err()
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.IngestMessageJob{
		UserID:  "user-1",
		Adapter: "listener",
		Message: domain.RawMessage{Body: "in flight"},
	}
	if err := q.PublishIngestMessage(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestMessage: %v", err)
	}

	// Wait for the worker to pick the job up before stopping.
	deadline := time.After(2 * time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err == nil && saved.Status == jobs.JobStatusRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never started running")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stopped := make(chan error, 1)
	go func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		stopped <- q.Stop(stopCtx)
	}()

	// Stop must block on the in-flight handler, not abandon it.
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned %v before the in-flight job finished", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	if err := <-stopped; err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-ctxErrs; err != nil {
		t.Errorf("handler context during shutdown: %v, want nil", err)
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if saved.Status != jobs.JobStatusCompleted {
		t.Errorf("job status after drain = %q, want %q", saved.Status, jobs.JobStatusCompleted)
	}
}

func TestQueue_RetriesUpToMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := 0

	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient failure")
		}
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.IngestMessageJob{
		UserID:     "user-1",
		Adapter:    "catchup",
		Message:    domain.RawMessage{Body: "flaky"},
		MaxRetries: 1,
	}
	if err := q.PublishIngestMessage(ctx, job); err != nil {
		t.Fatalf("PublishIngestMessage: %v", err)
	}

	// One retry with a one-second backoff in between.
	deadline := time.After(4 * time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err == nil && saved.Status == jobs.JobStatusCompleted {
			if saved.RetryCount != 1 {
				t.Errorf("RetryCount = %d, want 1", saved.RetryCount)
			}
			if saved.Error != "" {
				t.Errorf("completed job carries error %q", saved.Error)
			}
			break
		}
		select {
		case <-deadline:
			var status jobs.JobStatus
			if err == nil {
				status = saved.Status
			}
			t.Fatalf("job never completed, last status %q", status)
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	n := attempts
	mu.Unlock()
	if n != 2 {
		t.Errorf("handler attempts = %d, want 2", n)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_PublishAfterStopFails(t *testing.T) {
	q := NewQueue(1, 1, nil)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	err := q.PublishIngestMessage(context.Background(), &jobs.IngestMessageJob{
		Message: domain.RawMessage{Body: "late"},
	})
	if err == nil {
		t.Error("PublishIngestMessage after Stop should fail")
	}
}
