package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Request is an incoming submission: a channel to report back to and a
// reference to the attached drawing program. A request without an attachment
// is ignored, not an error.
type Request struct {
	Channel       string
	AttachmentURL string

	// Source carries the program text directly when the front end already
	// has it (e.g. the HTTP API); AttachmentURL is ignored when set.
	Source string
}

// Job is one accepted request, alive from admission until its media is
// delivered or the run fails. Jobs are never persisted beyond process memory
// (the history store keeps its own record).
type Job struct {
	ID          string
	Channel     string
	Source      string
	SubmittedAt time.Time
}

func newJob(req Request) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Channel:     req.Channel,
		SubmittedAt: time.Now(),
	}
}
