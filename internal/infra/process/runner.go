// Package process runs each job in its own OS process group, bound to a
// wall-clock timeout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/ports"
	"actionrunner/internal/protocol"

	"github.com/rs/zerolog/log"
)

const (
	captureLimit   = 64 * 1024
	progressBuffer = 16
	waitDelay      = 5 * time.Second
)

var _ ports.Runner = (*Runner)(nil)

// Runner starts Command with the JSON-encoded job appended as the last
// argument. A zero Timeout leaves executions unbounded.
type Runner struct {
	Command []string
	Timeout time.Duration
}

func New(command []string, timeout time.Duration) *Runner {
	return &Runner{Command: command, Timeout: timeout}
}

func (r *Runner) Start(ctx context.Context, job domain.Job) (ports.Execution, error) {
	if len(r.Command) == 0 {
		return ports.Execution{}, errors.New("process: no worker command configured")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return ports.Execution{}, fmt.Errorf("encode job: %w", err)
	}

	var (
		rctx   context.Context
		cancel context.CancelFunc
	)
	if r.Timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, r.Timeout)
	} else {
		rctx, cancel = context.WithCancel(ctx)
	}

	args := append(append([]string{}, r.Command[1:]...), string(payload))
	cmd := exec.CommandContext(rctx, r.Command[0], args...)
	// the browser runs as a grandchild; kill the whole group
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return ports.Execution{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &capBuffer{limit: captureLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return ports.Execution{}, fmt.Errorf("start worker: %w", err)
	}
	log.Ctx(ctx).Debug().Int("pid", cmd.Process.Pid).Str("action", string(job.Action)).Msg("worker started")

	progress := make(chan string, progressBuffer)
	done := make(chan ports.Outcome, 1)
	go func() {
		defer cancel()
		captured := &capBuffer{limit: captureLimit}
		tee := io.TeeReader(stdout, captured)
		res, found, raw, derr := protocol.Decode(tee, func(stage string) {
			select {
			case progress <- stage:
			default:
				log.Warn().Str("stage", stage).Msg("progress dropped, consumer too slow")
			}
		})
		close(progress)
		if derr != nil {
			log.Warn().Err(derr).Msg("worker output not fully decoded")
		}
		// Wait blocks on a child stuck writing to a full pipe
		if _, err := io.Copy(io.Discard, tee); err != nil {
			log.Debug().Err(err).Msg("worker output drain stopped")
		}

		werr := cmd.Wait()
		out := ports.Outcome{
			ExitCode: exitCode(cmd, werr),
			Stdout:   captured.String(),
			Stderr:   stderr.String(),
			TimedOut: errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil,
		}
		switch {
		case out.TimedOut:
			out.Result = domain.Result{
				Status:  domain.ResultError,
				Action:  string(job.Action),
				Message: fmt.Sprintf("Action timed out after %s", r.Timeout),
			}
		case found:
			out.Result = res
		default:
			if raw == "" {
				raw = out.Stdout
			}
			out.Result = protocol.Unparsed(raw)
		}
		done <- out
	}()

	return ports.Execution{Progress: progress, Done: done}, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
	}
	if err != nil {
		// killed by a signal or never reaped
		return -1
	}
	return 0
}

// capBuffer keeps the first limit bytes written and discards the rest.
type capBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *capBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *capBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
