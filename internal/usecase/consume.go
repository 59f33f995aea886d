package usecase

import (
	"context"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/ports"
	"actionrunner/pkg/backoff"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, t domain.Task) error

// Consumer claims tasks one at a time and hands them to a Handler. Failed
// tasks are retried with backoff until MaxAttempts, then dead-lettered.
type Consumer struct {
	Q            ports.Queue
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Block        time.Duration

	// Pace, when set, runs after every handled task before the next claim.
	Pace func(ctx context.Context) error
}

func (c Consumer) Run(ctx context.Context, handle Handler) error {
	block := c.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t, id, err := c.Q.Claim(ctx, c.ConsumerName, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Msg("claim failed")
			if err := sleep(ctx, time.Second); err != nil {
				return err
			}
			continue
		}
		if t == nil {
			continue
		}

		c.handle(ctx, handle, *t, id)

		if c.Pace != nil {
			if err := c.Pace(ctx); err != nil {
				return err
			}
		}
	}
}

func (c Consumer) handle(ctx context.Context, handle Handler, t domain.Task, id string) {
	logger := log.With().Str("task_id", t.ID).Str("action", string(t.Job.Action)).Logger()

	t.Status = domain.StatusRunning
	if err := c.Q.SaveState(ctx, t); err != nil {
		logger.Warn().Err(err).Msg("task state not saved")
	}

	err := handle(ctx, t)
	if err == nil {
		if err := c.Q.Ack(ctx, id); err != nil {
			logger.Warn().Err(err).Msg("ack failed")
		}
		if latest, gerr := c.Q.Get(ctx, t.ID); gerr == nil && latest != nil {
			t.Stage = latest.Stage
		}
		t.Status = domain.StatusDone
		t.LastError = ""
		if err := c.Q.SaveState(ctx, t); err != nil {
			logger.Warn().Err(err).Msg("task state not saved")
		}
		logger.Info().Msg("task done")
		return
	}

	if t.Attempts+1 >= t.MaxAttempts {
		t.Attempts++
		t.LastError = err.Error()
		if err := c.Q.ToDLQ(ctx, id, t, t.LastError); err != nil {
			logger.Error().Err(err).Msg("dead-letter failed")
		}
		logger.Warn().Err(err).Int("attempts", t.Attempts).Msg("task failed")
		return
	}

	delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, t.Attempts+1)
	t.NextRunAt = time.Now().Add(delay)
	if ferr := c.Q.Fail(ctx, id, t, err); ferr != nil {
		logger.Warn().Err(ferr).Msg("failure not recorded")
	}
	t.Attempts++
	t.LastError = err.Error()

	// remove from PEL by acking and then re-inserting as delayed
	_ = c.Q.Ack(ctx, id)
	if _, err := c.Q.EnqueueDelayed(ctx, t, t.NextRunAt); err != nil {
		logger.Error().Err(err).Msg("retry not scheduled")
		return
	}
	logger.Info().Dur("backoff", delay).Int("attempt", t.Attempts).Msg("task rescheduled")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
