package actions

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"actionrunner/internal/browser"
	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"
	"actionrunner/internal/protocol"

	"github.com/rs/zerolog/log"
)

// SessionOpener opens the persistent browsing context of an identity.
type SessionOpener interface {
	Open(ctx context.Context, email string) (*browser.Session, error)
}

// Execute runs the job encoded in args[0] inside the current process and
// writes the status stream to stdout. It returns the process exit code.
func Execute(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer, sessions SessionOpener, h *humanizer.Humanizer) int {
	em := protocol.NewEmitter(stdout)
	fail := func(action domain.Action, msg string) int {
		if err := em.Result(domain.Result{Status: domain.ResultError, Action: string(action), Message: msg}); err != nil {
			log.Error().Err(err).Msg("terminal result not written")
		}
		return 1
	}

	if len(args) == 0 || args[0] == "" {
		return fail("", "No args provided")
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(args[0]), &job); err != nil {
		return fail("", "Invalid JSON args: "+err.Error())
	}
	if !job.Action.Known() {
		return fail(job.Action, domain.UnknownActionError{Name: string(job.Action)}.Error())
	}
	if err := job.Validate(); err != nil {
		return fail(job.Action, FailureMessage(err))
	}

	msg, err := run(ctx, cfg, job, em, sessions, h)
	if err != nil {
		log.Error().Err(err).Str("action", string(job.Action)).Msg("action failed")
		return fail(job.Action, FailureMessage(err))
	}
	if err := em.Result(domain.Result{Status: domain.ResultOK, Action: string(job.Action), Message: msg}); err != nil {
		log.Error().Err(err).Msg("terminal result not written")
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, job domain.Job, em *protocol.Emitter, sessions SessionOpener, h *humanizer.Humanizer) (string, error) {
	sess, err := sessions.Open(ctx, job.Email)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	r := NewRunner(sess.Page, h, cfg, em)
	if _, err := r.Login(ctx, job.Email, job.Password); err != nil {
		return "", err
	}
	msg, err := r.Run(ctx, job)
	if err != nil {
		return "", err
	}
	if msg == "" {
		msg = "Action completed"
	}
	return msg, nil
}

// FailureMessage renders err as a bounded terminal message.
func FailureMessage(err error) string {
	if errors.Is(err, domain.ErrNavigationTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "Timeout: " + protocol.Truncate(err.Error(), 200)
	}
	return protocol.Truncate(err.Error(), 300)
}
