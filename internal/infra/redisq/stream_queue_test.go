package redisq

import (
	"context"
	"errors"
	"testing"
	"time"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noBlock makes XREADGROUP return immediately.
const noBlock = -1

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(config.Redis{
		Addr:          mr.Addr(),
		StreamKey:     "actions",
		Group:         "action-workers",
		ScheduledZSet: "actions:scheduled",
		DLQStreamKey:  "actions:dlq",
	})
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Init(context.Background()))
	return c, mr
}

func testTask() domain.Task {
	return domain.Task{
		MaxAttempts: 2,
		Job: domain.Job{
			Action:   domain.ActionPost,
			Email:    "a@b.com",
			Password: "x",
			Content:  "hi",
			PostID:   "42",
		},
	}
}

func TestEnqueueClaimAck(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	id, err := c.Enqueue(ctx, testTask())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Equal(t, "hi", got.Job.Content)
	assert.Equal(t, 2, got.MaxAttempts)
	assert.False(t, got.CreatedAt.IsZero())

	claimed, streamID, err := c.Claim(ctx, "w1", noBlock)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, id, claimed.ID)
	assert.Equal(t, domain.ActionPost, claimed.Job.Action)
	require.NoError(t, c.Ack(ctx, streamID))

	again, _, err := c.Claim(ctx, "w1", noBlock)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestGetUnknownTask(t *testing.T) {
	c, _ := newTestClient(t)
	got, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetStageAndFail(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	id, err := c.Enqueue(ctx, testTask())
	require.NoError(t, err)
	require.NoError(t, c.SetStage(ctx, id, "publishing"))

	task, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "publishing", task.Stage)

	require.NoError(t, c.Fail(ctx, "0-1", *task, errors.New("control not found")))
	task, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "control not found", task.LastError)
}

func TestToDLQ(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	id, err := c.Enqueue(ctx, testTask())
	require.NoError(t, err)
	task, streamID, err := c.Claim(ctx, "w1", noBlock)
	require.NoError(t, err)

	require.NoError(t, c.ToDLQ(ctx, streamID, *task, "login failed"))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "login failed", got.LastError)

	entries, err := mr.Stream("actions:dlq")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values[1], `"reason":"login failed"`)
}

func TestSchedulerMovesDueTasks(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	s := NewScheduler(c, time.Hour)

	dueID, err := c.EnqueueDelayed(ctx, testTask(), time.Now().Add(-time.Second))
	require.NoError(t, err)
	laterID, err := c.EnqueueDelayed(ctx, testTask(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	delayed, err := c.Get(ctx, dueID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelayed, delayed.Status)

	n, err := s.moveDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claimed, _, err := c.Claim(ctx, "w1", noBlock)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, dueID, claimed.ID)
	assert.Equal(t, "hi", claimed.Job.Content, "the full job survives the delay")

	left, err := c.Rdb.ZRange(ctx, "actions:scheduled", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{laterID}, left)
}

func TestSchedulerNothingDue(t *testing.T) {
	c, _ := newTestClient(t)
	n, err := NewScheduler(c, time.Hour).moveDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClaimDropsPoisonEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "actions",
		Values: map[string]any{"task": "{not json"},
	}).Err())

	_, _, err := c.Claim(ctx, "w1", noBlock)
	assert.ErrorIs(t, err, domain.ErrMalformedJob)

	pending, err := c.Rdb.XPending(ctx, "actions", "action-workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
