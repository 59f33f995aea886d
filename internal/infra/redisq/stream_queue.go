package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ ports.Queue = (*Client)(nil)

// Enqueue appends t to the stream and returns the task id.
func (c *Client) Enqueue(ctx context.Context, t domain.Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.Status = domain.StatusQueued
	if err := c.SaveState(ctx, t); err != nil {
		return "", err
	}
	if err := c.push(ctx, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (c *Client) push(ctx context.Context, t domain.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.StreamKey,
		Values: map[string]any{"task": b},
	}).Err()
}

func (c *Client) EnqueueDelayed(ctx context.Context, t domain.Task, runAt time.Time) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.Status = domain.StatusDelayed
	t.NextRunAt = runAt
	if err := c.SaveState(ctx, t); err != nil {
		return "", err
	}
	score := float64(runAt.UnixMilli())
	if err := c.Rdb.ZAdd(ctx, c.Cfg.ScheduledZSet, redis.Z{Score: score, Member: t.ID}).Err(); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Task, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.Cfg.StreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	var t domain.Task
	var derr error
	switch v := msg.Values["task"].(type) {
	case string:
		derr = json.Unmarshal([]byte(v), &t)
	case []byte:
		derr = json.Unmarshal(v, &t)
	default:
		derr = fmt.Errorf("unexpected task type: %T", v)
	}
	if derr != nil {
		// a poison entry would be redelivered forever
		_ = c.Ack(ctx, msg.ID)
		return nil, "", fmt.Errorf("%w: stream entry %s: %v", domain.ErrMalformedJob, msg.ID, derr)
	}
	return &t, msg.ID, nil
}

func (c *Client) Ack(ctx context.Context, streamID string) error {
	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}

// Fail records a failed attempt.
func (c *Client) Fail(ctx context.Context, streamID string, t domain.Task, err error) error {
	t.Attempts++
	if err != nil {
		t.LastError = err.Error()
	}
	return c.SaveState(ctx, t)
}

func (c *Client) ToDLQ(ctx context.Context, streamID string, t domain.Task, reason string) error {
	b, err := json.Marshal(struct {
		domain.Task
		Reason string `json:"reason"`
	}{t, reason})
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.DLQStreamKey,
		Values: map[string]any{"task": b},
	}).Err(); err != nil {
		return err
	}

	_ = c.Ack(ctx, streamID)
	t.Status = domain.StatusFailed
	t.LastError = reason
	return c.SaveState(ctx, t)
}

// SaveState writes the task hash. The job is kept as one JSON field so a
// delayed task can be rebuilt in full.
func (c *Client) SaveState(ctx context.Context, t domain.Task) error {
	job, err := json.Marshal(t.Job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	m := map[string]any{
		"job":          job,
		"status":       string(t.Status),
		"attempts":     t.Attempts,
		"max_attempts": t.MaxAttempts,
		"stage":        t.Stage,
		"last_error":   t.LastError,
		"created_at":   t.CreatedAt.UnixMilli(),
		"next_run_at":  t.NextRunAt.UnixMilli(),
	}
	return c.Rdb.HSet(ctx, taskKey(t.ID), m).Err()
}

// SetStage records the last progress event of a task.
func (c *Client) SetStage(ctx context.Context, id, stage string) error {
	return c.Rdb.HSet(ctx, taskKey(id), "stage", stage).Err()
}

// Get returns nil, nil for an unknown id.
func (c *Client) Get(ctx context.Context, id string) (*domain.Task, error) {
	h, err := c.Rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil || len(h) == 0 {
		return nil, err
	}

	t := &domain.Task{
		ID:        id,
		Status:    domain.TaskStatus(h["status"]),
		Stage:     h["stage"],
		LastError: h["last_error"],
	}
	if raw := h["job"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Job); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", id, err)
		}
	}
	t.Attempts, _ = strconv.Atoi(h["attempts"])
	t.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	t.CreatedAt = fromMs(h["created_at"])
	t.NextRunAt = fromMs(h["next_run_at"])
	return t, nil
}

func fromMs(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
