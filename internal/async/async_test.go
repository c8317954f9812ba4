package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub003/internal/entity"
	"github.com/devkiraa/makeTicket-sub003/internal/review"
)

type fakeProcessor struct {
	inFlight, maxInFlight atomic.Int32
	delay                 time.Duration
	fail                  map[string]bool
}

func (p *fakeProcessor) Process(ctx context.Context, job Job) (*review.SubmitOutcome, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.fail[job.ID] {
		return nil, errors.New("unreadable")
	}
	return &review.SubmitOutcome{Submission: &entity.Submission{TicketID: job.TicketID}}, nil
}

func TestProcessorQueue_ProcessesAndDrains(t *testing.T) {
	proc := &fakeProcessor{delay: 5 * time.Millisecond, fail: map[string]bool{"j3": true}}

	var mu sync.Mutex
	seen := map[string]error{}
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithProcessTimeout(time.Second),
		WithResultHandler(func(job Job, _ *review.SubmitOutcome, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen[job.ID] = err
		}),
	)

	for _, id := range []string{"j1", "j2", "j3", "j4", "j5"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: id, TicketID: "T-" + id}))
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 5)
	assert.Error(t, seen["j3"])
	assert.NoError(t, seen["j1"])
	assert.LessOrEqual(t, proc.maxInFlight.Load(), int32(2))

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{ID: "late"}), ErrQueueClosed)
	q.Shutdown(context.Background())
}

type gatedProcessor struct {
	started chan string
	release chan struct{}
}

func (p *gatedProcessor) Process(_ context.Context, job Job) (*review.SubmitOutcome, error) {
	p.started <- job.ID
	<-p.release
	return &review.SubmitOutcome{}, nil
}

func TestProcessorQueue_ShutdownReleasesBlockedEnqueue(t *testing.T) {
	proc := &gatedProcessor{started: make(chan string, 4), release: make(chan struct{})}
	var processed atomic.Int32
	q := NewProcessorQueue(proc, nil,
		WithWorkers(1),
		WithQueueSize(1),
		WithResultHandler(func(Job, *review.SubmitOutcome, error) { processed.Add(1) }),
	)

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "busy"}))
	assert.Equal(t, "busy", <-proc.started)
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "buffered"}))

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), Job{ID: "waiting"}) }()
	select {
	case err := <-blocked:
		t.Fatalf("enqueue on a full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		q.Shutdown(context.Background())
	}()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue not released by shutdown")
	}
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{ID: "late"}), ErrQueueClosed)

	close(proc.release)
	select {
	case <-shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish draining")
	}
	assert.Equal(t, int32(2), processed.Load(), "queued work is drained")
}

func TestRunBatch(t *testing.T) {
	proc := &fakeProcessor{delay: 2 * time.Millisecond, fail: map[string]bool{"b2": true}}
	jobs := []Job{{ID: "b1"}, {ID: "b2"}, {ID: "b3"}, {ID: "b4"}, {ID: "b5"}, {ID: "b6"}}

	results, err := RunBatch(context.Background(), proc, jobs, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, jobs[i].ID, r.Job.ID)
	}
	assert.Error(t, results[1].Err)
	assert.NotNil(t, results[0].Outcome)
	assert.LessOrEqual(t, proc.maxInFlight.Load(), int32(3))
}

func TestRunBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBatch(ctx, &fakeProcessor{}, []Job{{ID: "c1"}, {ID: "c2"}}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
