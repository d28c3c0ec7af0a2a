package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugcu/backend/internal/matching"
	"github.com/plugcu/backend/pkg/queue"
)

type fakeRunner struct {
	mu       sync.Mutex
	full     int
	brands   []uuid.UUID
	events   []uuid.UUID
	failures []matching.PairFailure
	err      error
}

func (f *fakeRunner) report() (*matching.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &matching.Report{Pairs: 1, Failures: f.failures}, nil
}

func (f *fakeRunner) Run(context.Context, time.Time) (*matching.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full++
	return f.report()
}

func (f *fakeRunner) RunForBrand(_ context.Context, id uuid.UUID, _ time.Time) (*matching.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brands = append(f.brands, id)
	return f.report()
}

func (f *fakeRunner) RunForEvent(_ context.Context, id uuid.UUID, _ time.Time) (*matching.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, id)
	return f.report()
}

func (f *fakeRunner) snapshot() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.full, len(f.brands), len(f.events)
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewQueue(rdb, nil)
}

func TestProcessDispatchesByJobType(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	runner := &fakeRunner{}
	p := NewMatchProcessor(runner, q, 0, nil)

	brandID, eventID := uuid.New(), uuid.New()
	require.NoError(t, q.EnqueueRecomputeBrand(ctx, brandID, "profile_updated"))
	require.NoError(t, q.EnqueueRecomputeEvent(ctx, eventID, "event_published"))
	require.NoError(t, q.EnqueueRecomputeAll(ctx, "admin_request"))

	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
		require.NoError(t, p.Process(ctx, job))
	}
	assert.Equal(t, []uuid.UUID{brandID}, runner.brands)
	assert.Equal(t, []uuid.UUID{eventID}, runner.events)
	assert.Equal(t, 1, runner.full)

	err := p.Process(ctx, &queue.Job{ID: "x", Type: "send_email"})
	assert.ErrorContains(t, err, "unknown job type")
}

func TestProcessFailsOnlyForUpstreamFailures(t *testing.T) {
	ctx := context.Background()
	job := &queue.Job{ID: "j1", Type: queue.JobRecomputeAll}

	runner := &fakeRunner{failures: []matching.PairFailure{{Kind: matching.FailureInvalidInput}}}
	p := NewMatchProcessor(runner, nil, 0, nil)
	assert.NoError(t, p.Process(ctx, job))

	runner.failures = append(runner.failures, matching.PairFailure{Kind: matching.FailureUpstreamUnavailable})
	err := p.Process(ctx, job)
	assert.ErrorIs(t, err, matching.ErrUpstreamUnavailable)

	runner.err = errors.New("db down")
	assert.Error(t, p.Process(ctx, job))
}

func TestRunRetriesThenDeadLetters(t *testing.T) {
	q := newQueue(t)
	runner := &fakeRunner{err: errors.New("db down")}
	p := NewMatchProcessor(runner, q, 0, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.EnqueueRecomputeBrand(ctx, uuid.New(), "brand_verified"))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		n, _ := q.Len(context.Background(), queue.QueueDLQ)
		return n == 1
	}, 5*time.Second, 10*time.Millisecond)
	_, brands, _ := runner.snapshot()
	assert.Equal(t, queue.MaxRetries, brands)

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestScheduledFullRun(t *testing.T) {
	q := newQueue(t)
	runner := &fakeRunner{}
	p := NewMatchProcessor(runner, q, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		full, _, _ := runner.snapshot()
		return full >= 2
	}, 5*time.Second, 10*time.Millisecond)
}
