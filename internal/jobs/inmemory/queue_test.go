package inmemory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestQueue_ProcessesJobs(t *testing.T) {
	ctx := waitCtx(t)
	store := inmemory.NewStore()
	q := inmemory.NewQueue(10, store, inmemory.WithWorkers(3))

	var mu sync.Mutex
	seen := map[string]bool{}
	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		seen[job.GetID()] = true
		mu.Unlock()
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer q.Close()

	for i := 0; i < 5; i++ {
		job := &jobs.AnalyzeJob{JobID: fmt.Sprintf("job-%d", i), Input: pipeline.Input{Source: "x.json"}}
		if err := q.PublishAnalyze(ctx, job); err != nil {
			t.Fatalf("PublishAnalyze() error = %v", err)
		}
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if len(seen) != 5 {
		t.Errorf("handled %d jobs, want 5", len(seen))
	}
	done, _ := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if len(done) != 5 {
		t.Errorf("completed jobs = %d, want 5", len(done))
	}
}

func TestQueue_AssignsDefaults(t *testing.T) {
	ctx := waitCtx(t)
	store := inmemory.NewStore()
	q := inmemory.NewQueue(1, store, inmemory.WithMaxRetries(7))
	defer q.Close()

	job := &jobs.AnalyzeJob{}
	if err := q.PublishAnalyze(ctx, job); err != nil {
		t.Fatalf("PublishAnalyze() error = %v", err)
	}
	if job.JobID == "" || job.CreatedAt.IsZero() {
		t.Errorf("defaults not set: %+v", job)
	}
	if job.Status != jobs.JobStatusPending || job.MaxRetries != 7 {
		t.Errorf("status/maxRetries = %s/%d", job.Status, job.MaxRetries)
	}
	if _, err := store.GetJob(ctx, job.JobID); err != nil {
		t.Errorf("job not saved: %v", err)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx := waitCtx(t)
	store := inmemory.NewStore()
	q := inmemory.NewQueue(4, store, inmemory.WithRetryBackoff(time.Millisecond))

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}
	_ = q.Start(ctx, handler)
	defer q.Close()

	job := &jobs.AnalyzeJob{JobID: "r1", MaxRetries: 3}
	if err := q.PublishAnalyze(ctx, job); err != nil {
		t.Fatalf("PublishAnalyze() error = %v", err)
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got, _ := store.GetJob(ctx, "r1")
	if got.Status != jobs.JobStatusCompleted || got.RetryCount != 2 || got.Error != "" {
		t.Errorf("job = status %s retries %d error %q", got.Status, got.RetryCount, got.Error)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx := waitCtx(t)
	store := inmemory.NewStore()
	q := inmemory.NewQueue(4, store, inmemory.WithRetryBackoff(time.Millisecond))

	var attempts atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return errors.New("always")
	})
	defer q.Close()

	_ = q.PublishAnalyze(ctx, &jobs.AnalyzeJob{JobID: "f1", MaxRetries: 2})
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got, _ := store.GetJob(ctx, "f1")
	if got.Status != jobs.JobStatusFailed || got.Error != "always" {
		t.Errorf("job = %+v", got)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestQueue_PermanentErrorSkipsRetry(t *testing.T) {
	ctx := waitCtx(t)
	store := inmemory.NewStore()
	q := inmemory.NewQueue(4, store, inmemory.WithRetryBackoff(time.Millisecond))

	var attempts atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return fmt.Errorf("bad input: %w", jobs.ErrPermanent)
	})
	defer q.Close()

	_ = q.PublishAnalyze(ctx, &jobs.AnalyzeJob{JobID: "p1"})
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got, _ := store.GetJob(ctx, "p1")
	if got.Status != jobs.JobStatusFailed || got.RetryCount != 0 {
		t.Errorf("job = status %s retries %d", got.Status, got.RetryCount)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestQueue_ClosedRejectsWork(t *testing.T) {
	ctx := waitCtx(t)
	q := inmemory.NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := q.PublishAnalyze(ctx, &jobs.AnalyzeJob{}); !errors.Is(err, inmemory.ErrQueueClosed) {
		t.Errorf("PublishAnalyze() error = %v, want ErrQueueClosed", err)
	}
	if err := q.Start(ctx, func(context.Context, jobs.Job) error { return nil }); !errors.Is(err, inmemory.ErrQueueClosed) {
		t.Errorf("Start() error = %v, want ErrQueueClosed", err)
	}
	if err := q.Wait(ctx); err != nil {
		t.Errorf("Wait() after rejected publish error = %v", err)
	}
}
