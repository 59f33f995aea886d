package ports

import (
	"context"

	"actionrunner/internal/domain"
)

// Runner launches one isolated execution of a job.
type Runner interface {
	Start(ctx context.Context, job domain.Job) (Execution, error)
}

// Execution delivers advisory progress stages and then exactly one Outcome.
// Progress is closed before Done receives its value.
type Execution struct {
	Progress <-chan string
	Done     <-chan Outcome
}

// Outcome is what the dispatcher observed of a finished execution.
type Outcome struct {
	Result   domain.Result
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}
