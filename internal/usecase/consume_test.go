package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"actionrunner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQueue is a single-consumer in-memory ports.Queue.
type memQueue struct {
	mu      sync.Mutex
	ready   []domain.Task
	states  map[string]domain.Task
	delayed map[string]time.Time
	dlq     []string
	acked   int
}

func newMemQueue(tasks ...domain.Task) *memQueue {
	q := &memQueue{states: map[string]domain.Task{}, delayed: map[string]time.Time{}}
	for _, t := range tasks {
		q.ready = append(q.ready, t)
		q.states[t.ID] = t
	}
	return q
}

func (q *memQueue) Enqueue(_ context.Context, t domain.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.Status = domain.StatusQueued
	q.ready = append(q.ready, t)
	q.states[t.ID] = t
	return t.ID, nil
}

func (q *memQueue) EnqueueDelayed(_ context.Context, t domain.Task, at time.Time) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.Status = domain.StatusDelayed
	q.delayed[t.ID] = at
	q.states[t.ID] = t
	return t.ID, nil
}

func (q *memQueue) Claim(ctx context.Context, _ string, _ time.Duration) (*domain.Task, string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil, "", ctx.Err()
	}
	t := q.ready[0]
	q.ready = q.ready[1:]
	return &t, "s-" + t.ID, nil
}

func (q *memQueue) Ack(context.Context, string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked++
	return nil
}

func (q *memQueue) Fail(_ context.Context, _ string, t domain.Task, err error) error {
	t.Attempts++
	t.LastError = err.Error()
	return q.SaveState(context.Background(), t)
}

func (q *memQueue) ToDLQ(_ context.Context, _ string, t domain.Task, reason string) error {
	q.mu.Lock()
	q.dlq = append(q.dlq, t.ID)
	q.mu.Unlock()
	t.Status = domain.StatusFailed
	t.LastError = reason
	return q.SaveState(context.Background(), t)
}

func (q *memQueue) SaveState(_ context.Context, t domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[t.ID] = t
	return nil
}

func (q *memQueue) SetStage(_ context.Context, id, stage string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.states[id]
	t.Stage = stage
	q.states[id] = t
	return nil
}

func (q *memQueue) Get(_ context.Context, id string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.states[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (q *memQueue) state(id string) domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.states[id]
}

// runUntilDrained consumes until the queue is empty, then stops the consumer.
func runUntilDrained(t *testing.T, q *memQueue, c Consumer, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Q = q
	c.Pace = func(context.Context) error {
		q.mu.Lock()
		empty := len(q.ready) == 0
		q.mu.Unlock()
		if empty {
			cancel()
		}
		return nil
	}
	err := c.Run(ctx, h)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConsumerSuccess(t *testing.T) {
	q := newMemQueue(domain.Task{ID: "t1", MaxAttempts: 1})
	runUntilDrained(t, q, Consumer{}, func(ctx context.Context, task domain.Task) error {
		assert.Equal(t, domain.StatusRunning, q.state("t1").Status)
		return q.SetStage(ctx, task.ID, "published")
	})

	got := q.state("t1")
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, "published", got.Stage)
	assert.Equal(t, 1, q.acked)
}

func TestConsumerNoImplicitRetry(t *testing.T) {
	q := newMemQueue(domain.Task{ID: "t1", MaxAttempts: 1})
	runUntilDrained(t, q, Consumer{}, func(context.Context, domain.Task) error {
		return errors.New("login failed")
	})

	assert.Equal(t, []string{"t1"}, q.dlq)
	got := q.state("t1")
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "login failed", got.LastError)
	assert.Empty(t, q.delayed)
}

func TestConsumerRequestedRetryBacksOff(t *testing.T) {
	q := newMemQueue(domain.Task{ID: "t1", MaxAttempts: 3})
	before := time.Now()
	runUntilDrained(t, q, Consumer{BaseBackoff: time.Second, MaxBackoff: time.Minute}, func(context.Context, domain.Task) error {
		return errors.New("navigation timeout")
	})

	require.Contains(t, q.delayed, "t1")
	assert.True(t, q.delayed["t1"].After(before))
	got := q.state("t1")
	assert.Equal(t, domain.StatusDelayed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, q.dlq)
}
