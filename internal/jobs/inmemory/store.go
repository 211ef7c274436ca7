package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/spend-insights/internal/jobs"
)

// ErrJobNotFound is returned for IDs the store has never saved.
var ErrJobNotFound = errors.New("job not found")

// Store keeps analysis jobs for the lifetime of the process. Callers always
// get copies, so a handler mutating its job never races a reader.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.AnalyzeJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.AnalyzeJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.AnalyzeJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = snapshot(job)
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, ErrJobNotFound)
	}
	return snapshot(job), nil
}

// ListJobs returns matching jobs oldest first, ties broken by ID, then applies
// Offset and Limit. No match gives an empty, non-nil slice.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.AnalyzeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if matches(job, filter) {
			matched = append(matched, snapshot(job))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.JobID < b.JobID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return page(matched, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, ErrJobNotFound)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

func matches(job *jobs.AnalyzeJob, f jobs.JobFilter) bool {
	if f.UserID != "" && job.Input.UserID != f.UserID {
		return false
	}
	return f.Status == "" || job.Status == f.Status
}

func page(all []*jobs.AnalyzeJob, offset, limit int) []*jobs.AnalyzeJob {
	if offset >= len(all) {
		return []*jobs.AnalyzeJob{}
	}
	if offset > 0 {
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func snapshot(job *jobs.AnalyzeJob) *jobs.AnalyzeJob {
	c := *job
	return &c
}

var _ jobs.JobStore = (*Store)(nil)
