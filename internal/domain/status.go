package domain

// JobStatus is the externally mirrored status of a correlated job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobPublishing JobStatus = "publishing"
	JobPublished  JobStatus = "published"
	JobFailed     JobStatus = "failed"
)

// Result is the terminal outcome of one action process.
type Result struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

const (
	ResultOK    = "ok"
	ResultError = "error"
)

func (r Result) OK() bool { return r.Status == ResultOK }
