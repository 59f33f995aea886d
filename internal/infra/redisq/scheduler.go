package redisq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.Scheduler = (*Scheduler)(nil)

// Scheduler moves delayed tasks into the stream once they are due.
type Scheduler struct {
	C        *Client
	Interval time.Duration
}

func NewScheduler(c *Client, interval time.Duration) *Scheduler {
	return &Scheduler{C: c, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if n, err := s.moveDue(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).Err(err).Msg("moving due tasks failed")
		} else if n > 0 {
			log.Ctx(ctx).Debug().Int("count", n).Msg("due tasks queued")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) moveDue(ctx context.Context) (int, error) {
	ids, err := s.C.Rdb.ZRangeByScore(ctx, s.C.Cfg.ScheduledZSet, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmtFloat(nowMs()),
		Offset: 0,
		Count:  128,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read scheduled tasks: %w", err)
	}

	moved := 0
	for _, id := range ids {
		t, err := s.C.Get(ctx, id)
		if err != nil {
			return moved, err
		}
		if t == nil {
			// state expired or was deleted; nothing to run
			_ = s.C.Rdb.ZRem(ctx, s.C.Cfg.ScheduledZSet, id).Err()
			continue
		}
		t.Status = domain.StatusQueued
		if err := s.C.SaveState(ctx, *t); err != nil {
			return moved, err
		}
		if err := s.C.push(ctx, *t); err != nil {
			return moved, err
		}
		if err := s.C.Rdb.ZRem(ctx, s.C.Cfg.ScheduledZSet, id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
