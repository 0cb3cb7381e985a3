package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/finsight/internal/jobs"
)

// Store keeps job state in a map, safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.IngestDocumentJob
}

// NewStore creates an empty in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.IngestDocumentJob),
	}
}

// SaveJob inserts or replaces a job. The stored value is a copy so callers
// cannot mutate it afterwards.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IngestDocumentJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IngestDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.IngestDocumentJob

	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.DocumentID != "" && job.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.IngestDocumentJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
