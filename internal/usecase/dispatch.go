package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/ports"
	"actionrunner/internal/protocol"

	"github.com/rs/zerolog/log"
)

const (
	stdoutLimit  = 500
	stderrLimit  = 200
	storeTimeout = 10 * time.Second
)

// Response is what a caller learns about one execution.
type Response struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"-"`
}

func (r Response) OK() bool { return r.Status == domain.ResultOK }

// Dispatcher runs jobs in isolated workers and mirrors the outcome of
// correlated jobs into the status store.
type Dispatcher struct {
	cfg    config.Dispatch
	runner ports.Runner
	store  ports.StatusStore
	pool   *Pool
}

func NewDispatcher(cfg *config.Config, runner ports.Runner, store ports.StatusStore, pool *Pool) *Dispatcher {
	if store == nil {
		store = nopStore{}
	}
	if pool == nil {
		pool = NewPool(cfg.Dispatch.MaxWorkers)
	}
	return &Dispatcher{cfg: cfg.Dispatch, runner: runner, store: store, pool: pool}
}

// Execute runs job to completion. onProgress, if set, receives each advisory
// stage the worker reports. A returned error is either domain.ErrMalformedJob,
// reported before anything is launched, or a failure of the dispatcher
// itself; worker failures are reported in the Response.
func (d *Dispatcher) Execute(ctx context.Context, job domain.Job, onProgress func(stage string)) (resp Response, err error) {
	if err := job.Validate(); err != nil {
		return Response{}, err
	}

	mirror := job.CorrelationID() != "" && d.cfg.Mirrors(job.Action)
	logger := log.With().
		Str("action", string(job.Action)).
		Str("correlation_id", job.CorrelationID()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
		if err != nil && mirror {
			d.setStatus(ctx, job, domain.JobFailed)
		}
	}()

	release, err := d.pool.Acquire(ctx, job.Identity())
	if err != nil {
		return Response{}, fmt.Errorf("wait for worker slot: %w", err)
	}
	defer release()

	if mirror {
		d.setStatus(ctx, job, domain.JobPublishing)
	}

	ex, err := d.runner.Start(ctx, job)
	if err != nil {
		return Response{}, fmt.Errorf("launch worker: %w", err)
	}
	for stage := range ex.Progress {
		logger.Debug().Str("stage", stage).Msg("worker progress")
		if onProgress != nil {
			onProgress(stage)
		}
	}
	out, ok := <-ex.Done
	if !ok {
		return Response{}, fmt.Errorf("%w: no outcome reported", domain.ErrWorkerCrash)
	}

	resp = d.response(job, out)
	if mirror {
		status := domain.JobFailed
		if out.ExitCode == 0 && !out.TimedOut {
			status = domain.JobPublished
		}
		d.setStatus(ctx, job, status)
	}

	logger.Info().
		Str("status", resp.Status).
		Int("exit_code", resp.ExitCode).
		Bool("timed_out", resp.TimedOut).
		Msg("job finished")
	return resp, nil
}

func (d *Dispatcher) response(job domain.Job, out ports.Outcome) Response {
	res := out.Result
	if out.ExitCode != 0 && res.OK() {
		// a non-zero exit is a failure whatever the stream said
		res.Status = domain.ResultError
		if res.Message == "" {
			res.Message = fmt.Sprintf("worker exited with code %d", out.ExitCode)
		}
	}
	if res.Status == "" {
		res.Status = domain.ResultError
	}
	action := res.Action
	if action == "" {
		action = string(job.Action)
	}
	return Response{
		Status:   res.Status,
		Message:  res.Message,
		Action:   action,
		ExitCode: out.ExitCode,
		Stdout:   protocol.Truncate(out.Stdout, stdoutLimit),
		Stderr:   protocol.Truncate(out.Stderr, stderrLimit),
		TimedOut: out.TimedOut,
	}
}

// setStatus is best effort: failures are logged and never change the outcome.
func (d *Dispatcher) setStatus(ctx context.Context, job domain.Job, status domain.JobStatus) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err := d.store.SetStatus(sctx, job.CorrelationID(), status); err != nil {
		log.Error().
			Err(errors.Join(domain.ErrStoreUpdateFailed, err)).
			Str("correlation_id", job.CorrelationID()).
			Str("status", string(status)).
			Msg("status not mirrored")
		return
	}
	log.Debug().Str("correlation_id", job.CorrelationID()).Str("status", string(status)).Msg("status mirrored")
}

type nopStore struct{}

func (nopStore) SetStatus(context.Context, string, domain.JobStatus) error { return nil }
