package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// expiringRepo отдаёт по batchSize удалённых записей, пока не исчерпает remaining.
type expiringRepo struct {
	mu        sync.Mutex
	remaining int
	failWith  error
	callCount int
}

func (r *expiringRepo) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (r *expiringRepo) Get(string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (r *expiringRepo) MarkDone(string, []byte, int) error {
	panic("not implemented")
}

func (r *expiringRepo) MarkFailed(string, []byte, int) error {
	panic("not implemented")
}

func (r *expiringRepo) DeleteExpired(_ time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callCount++
	if r.failWith != nil {
		return 0, r.failWith
	}

	deleted := limit
	if r.remaining < deleted {
		deleted = r.remaining
	}
	r.remaining -= deleted
	return deleted, nil
}

func (r *expiringRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callCount
}

var _ domain.IdempotencyRepository = (*expiringRepo)(nil)

func TestDeleteExpiredDrainsInBatches(t *testing.T) {
	t.Parallel()

	repo := &expiringRepo{remaining: 5}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())

	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	// Порции 2+2+1: последняя неполная порция завершает проход.
	assert.Equal(t, 3, repo.calls())
}

func TestDeleteExpiredStopsOnRepoError(t *testing.T) {
	t.Parallel()

	repo := &expiringRepo{failWith: errors.New("storage down")}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())

	require.Error(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, repo.calls())
}

func TestDeleteExpiredHonorsContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewCleanupWorker(&expiringRepo{remaining: 100}, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(ctx, time.Now().UTC())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, deleted)
}

func TestRunSweepsUntilContextCancel(t *testing.T) {
	t.Parallel()

	repo := &expiringRepo{remaining: 4}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	assert.NotZero(t, repo.calls())
	assert.Zero(t, repo.remaining)
}
