package usecase

import (
	"context"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/ports"
)

// Enqueuer accepts jobs for asynchronous execution.
type Enqueuer struct {
	Q ports.Queue
}

// Now queues t for immediate execution and returns its task id.
func (e Enqueuer) Now(ctx context.Context, t domain.Task) (string, error) {
	if err := prepare(&t); err != nil {
		return "", err
	}
	return e.Q.Enqueue(ctx, t)
}

// At queues t to run no earlier than runAt.
func (e Enqueuer) At(ctx context.Context, t domain.Task, runAt time.Time) (string, error) {
	if err := prepare(&t); err != nil {
		return "", err
	}
	if !runAt.After(time.Now()) {
		return e.Q.Enqueue(ctx, t)
	}
	return e.Q.EnqueueDelayed(ctx, t, runAt)
}

func prepare(t *domain.Task) error {
	if err := t.Job.Validate(); err != nil {
		return err
	}
	// retries only when the caller asks for them
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = 1
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}
