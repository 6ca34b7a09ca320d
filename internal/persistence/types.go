package persistence

import "time"

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID          int64
	Action      string
	Source      string
	Destination string
	Status      RunStatus
	ErrorKind   string
	Error       string
	Cues        int
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (r Run) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
