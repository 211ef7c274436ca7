package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/categorizer"
	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

type otherJob struct{}

func (otherJob) GetID() string             { return "other" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func testDeps() pipeline.Deps {
	return pipeline.Deps{
		Categorizer: categorizer.New(categorizer.DefaultRules(), categorizer.NoopRecognizer{}),
		NewID:       func() string { return "report-42" },
	}
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing export: %v", err)
	}
	return p
}

func TestAnalyzeHandler_RecordsReport(t *testing.T) {
	src := writeExport(t, `[
		{"date": "2024-01-01", "amount": 300, "merchant": "Dream11"},
		{"date": "2024-01-02", "amount": 200, "merchant": "Casino Royale"}
	]`)
	job := &jobs.AnalyzeJob{JobID: "j1", Input: pipeline.Input{Source: src}}

	if err := jobs.NewAnalyzeHandler(testDeps())(context.Background(), job); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if job.ReportID != "report-42" {
		t.Errorf("ReportID = %q, want report-42", job.ReportID)
	}
	if job.Flags != 1 || job.Savings != "500" {
		t.Errorf("Flags/Savings = %d/%s, want 1/500", job.Flags, job.Savings)
	}
}

func TestAnalyzeHandler_Errors(t *testing.T) {
	handler := jobs.NewAnalyzeHandler(testDeps())

	tests := []struct {
		name          string
		job           jobs.Job
		wantPermanent bool
	}{
		{
			name:          "wrong job type",
			job:           otherJob{},
			wantPermanent: true,
		},
		{
			name:          "malformed export",
			job:           &jobs.AnalyzeJob{Input: pipeline.Input{Source: writeExport(t, `[{"date":"2024-01-01","amount":1}]`)}},
			wantPermanent: true,
		},
		{
			name:          "missing file is retryable",
			job:           &jobs.AnalyzeJob{Input: pipeline.Input{Source: filepath.Join(t.TempDir(), "gone.json")}},
			wantPermanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(context.Background(), tt.job)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, jobs.ErrPermanent); got != tt.wantPermanent {
				t.Errorf("errors.Is(err, ErrPermanent) = %v, want %v (err = %v)", got, tt.wantPermanent, err)
			}
		})
	}
}

func TestAnalyzeHandler_WithQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := inmemory.NewStore()
	q := inmemory.NewQueue(8, store, inmemory.WithWorkers(2), inmemory.WithRetryBackoff(time.Millisecond))
	if err := q.Start(ctx, jobs.NewAnalyzeHandler(testDeps())); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer q.Close()

	good := writeExport(t, `[{"date": "2024-01-01", "amount": 10, "merchant": "Uber"}]`)
	bad := writeExport(t, `[{"date": "2024-01-01", "merchant": "Uber"}]`)
	for _, src := range []string{good, good, bad} {
		if err := q.PublishAnalyze(ctx, &jobs.AnalyzeJob{Input: pipeline.Input{Source: src}}); err != nil {
			t.Fatalf("PublishAnalyze() error = %v", err)
		}
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	completed, _ := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	failed, _ := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	if len(completed) != 2 || len(failed) != 1 {
		t.Errorf("completed/failed = %d/%d, want 2/1", len(completed), len(failed))
	}
	if len(failed) == 1 && failed[0].RetryCount != 0 {
		t.Errorf("malformed export was retried %d times", failed[0].RetryCount)
	}
}
