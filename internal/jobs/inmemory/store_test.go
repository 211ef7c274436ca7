package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewStore()

	job := &jobs.AnalyzeJob{JobID: "j1", Input: pipeline.Input{Source: "a.json"}, Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	job.Status = jobs.JobStatusRunning
	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed through caller's pointer: status = %s", got.Status)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, inmemory.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
	if err := s.SaveJob(ctx, &jobs.AnalyzeJob{}); err == nil {
		t.Error("SaveJob without ID expected error")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.AnalyzeJob{
		{JobID: "c", Input: pipeline.Input{UserID: "u1"}, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
		{JobID: "a", Input: pipeline.Input{UserID: "u1"}, Status: jobs.JobStatusFailed, CreatedAt: base},
		{JobID: "b", Input: pipeline.Input{UserID: "u2"}, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(time.Minute)},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all oldest first", jobs.JobFilter{}, []string{"a", "b", "c"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"b", "c"}},
		{"by user", jobs.JobFilter{UserID: "u1"}, []string{"a", "c"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"a", "b"}},
		{"offset", jobs.JobFilter{Offset: 1}, []string{"b", "c"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("job[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewStore()
	_ = s.SaveJob(ctx, &jobs.AnalyzeJob{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}

	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, inmemory.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(missing) error = %v, want ErrJobNotFound", err)
	}
}
