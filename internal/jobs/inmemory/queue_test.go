package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finsight/internal/jobs"
)

func TestPublishAssignsDefaults(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	job := &jobs.IngestDocumentJob{UserID: "user-1", DocumentID: "doc-1"}
	err := queue.PublishIngestDocument(context.Background(), job)

	require.NoError(t, err)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, 3, job.MaxRetries)

	saved, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.UserID)
}

func TestQueueProcessesJobs(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)

	var processed atomic.Int32
	done := make(chan struct{})

	err := queue.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		if processed.Add(1) == 1 {
			close(done)
		}
		return nil
	})
	require.NoError(t, err)

	job := &jobs.IngestDocumentJob{UserID: "user-1", DocumentID: "doc-1"}
	require.NoError(t, queue.PublishIngestDocument(context.Background(), job))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// Allow the completion write to land before asserting.
	assert.Eventually(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, queue.Stop(context.Background()))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)

	var attempts atomic.Int32
	err := queue.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient failure")
		}
		return nil
	})
	require.NoError(t, err)

	job := &jobs.IngestDocumentJob{UserID: "user-1", DocumentID: "doc-1", MaxRetries: 2}
	require.NoError(t, queue.PublishIngestDocument(context.Background(), job))

	assert.Eventually(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	assert.GreaterOrEqual(t, attempts.Load(), int32(2))

	require.NoError(t, queue.Stop(context.Background()))
}

func TestPublishAfterCloseFails(t *testing.T) {
	queue := NewQueue(1, nil)
	require.NoError(t, queue.Close())

	err := queue.PublishIngestDocument(context.Background(), &jobs.IngestDocumentJob{})

	assert.Error(t, err)
}

func TestStoreListFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &jobs.IngestDocumentJob{JobID: "j1", UserID: "u1", Status: jobs.JobStatusPending}))
	require.NoError(t, store.SaveJob(ctx, &jobs.IngestDocumentJob{JobID: "j2", UserID: "u1", Status: jobs.JobStatusCompleted}))
	require.NoError(t, store.SaveJob(ctx, &jobs.IngestDocumentJob{JobID: "j3", UserID: "u2", Status: jobs.JobStatusPending}))

	byUser, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	both, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "u2", Status: jobs.JobStatusPending})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "j3", both[0].JobID)
}
