// Package worker consumes queued jobs and runs them through the dispatcher.
package worker

import (
	"context"
	"errors"
	"time"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"
	"actionrunner/internal/infra/redisq"
	"actionrunner/internal/usecase"

	"github.com/rs/zerolog/log"
)

type Config struct {
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Executor runs one job synchronously.
type Executor interface {
	Execute(ctx context.Context, job domain.Job, onProgress func(stage string)) (usecase.Response, error)
}

// StageRecorder keeps the last progress event of a task.
type StageRecorder interface {
	SetStage(ctx context.Context, id, stage string) error
}

// Run consumes the stream until ctx is done. Between jobs it waits a random
// delay drawn from the configured behavior range.
func Run(ctx context.Context, appCfg *config.Config, cfg Config, exec Executor, cli *redisq.Client, h *humanizer.Humanizer) error {
	if err := cli.Init(ctx); err != nil {
		return err
	}

	// Run scheduler
	sched := redisq.NewScheduler(cli, 1*time.Second)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Ctx(ctx).Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	consumer := usecase.Consumer{
		Q:            cli,
		ConsumerName: cfg.ConsumerName,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		Pace:         Pacer(h, appCfg.Behavior),
	}

	log.Ctx(ctx).Info().Str("consumer", cfg.ConsumerName).Msg("worker consuming")
	err := consumer.Run(ctx, NewHandler(exec, cli))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NewHandler executes a task's job, recording progress on the task. A job
// that does not finish ok is a failed attempt.
func NewHandler(exec Executor, stages StageRecorder) usecase.Handler {
	return func(ctx context.Context, t domain.Task) error {
		resp, err := exec.Execute(ctx, t.Job, func(stage string) {
			if err := stages.SetStage(ctx, t.ID, stage); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("task_id", t.ID).Msg("stage not recorded")
			}
		})
		if err != nil {
			return err
		}
		if !resp.OK() {
			return errors.New(resp.Message)
		}
		log.Ctx(ctx).Info().
			Str("task_id", t.ID).
			Str("action", resp.Action).
			Int("attempts", t.Attempts+1).
			Msg(resp.Message)
		return nil
	}
}

// Pacer waits between consecutive jobs.
func Pacer(h *humanizer.Humanizer, b config.Behavior) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		d := h.Duration(b.MinDelay, b.MaxDelay)
		log.Ctx(ctx).Debug().Dur("delay", d).Msg("pausing before next job")
		return h.Sleep(ctx, d)
	}
}
