package domain

import "time"

type TaskStatus string

const (
	StatusQueued  TaskStatus = "queued"
	StatusRunning TaskStatus = "running"
	StatusDone    TaskStatus = "done"
	StatusFailed  TaskStatus = "failed"
	StatusDelayed TaskStatus = "delayed"
)

// Task is a queued job together with its delivery bookkeeping.
type Task struct {
	ID          string     `json:"id"`
	Job         Job        `json:"job"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Status      TaskStatus `json:"status"`
	Stage       string     `json:"stage,omitempty"` // last progress event
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	NextRunAt   time.Time  `json:"next_run_at"`
}
