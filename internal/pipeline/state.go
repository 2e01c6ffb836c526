package pipeline

import (
	"errors"
	"sync"
	"time"
)

// State is the job slot's lifecycle state.
type State string

const (
	// Idle means no job has run since startup.
	Idle State = "idle"
	// Running means exactly one job currently owns the machine.
	Running State = "running"
	// Succeeded and Failed report the previous job's outcome; both accept a
	// new job, so they are idle-equivalent for admission.
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// ErrBusy rejects a submission while another job owns the machine. The
// request is refused outright; there is no queue.
var ErrBusy = errors.New("a drawing is already in progress")

// Register is the single-slot job-state register. It replaces an ambient
// busy boolean with explicit states and transition guards so the
// one-job-at-a-time invariant is independently testable.
type Register struct {
	mu        sync.Mutex
	state     State
	currentID string
	changedAt time.Time
}

// NewRegister returns a Register in the Idle state.
func NewRegister() *Register {
	return &Register{state: Idle, changedAt: time.Now()}
}

// Begin transitions to Running on behalf of the given job. It fails with
// ErrBusy when another job holds the slot.
func (r *Register) Begin(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Running {
		return ErrBusy
	}
	r.state = Running
	r.currentID = jobID
	r.changedAt = time.Now()
	return nil
}

// Finish records the running job's terminal state. Calling Finish without a
// running job is a programming error and panics rather than silently
// corrupting the slot.
func (r *Register) Finish(final State) {
	if final != Succeeded && final != Failed {
		panic("pipeline: Finish requires a terminal state")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Running {
		panic("pipeline: Finish without a running job")
	}
	r.state = final
	r.changedAt = time.Now()
}

// State returns the current slot state.
func (r *Register) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Busy reports whether a job currently owns the machine.
func (r *Register) Busy() bool {
	return r.State() == Running
}

// Snapshot returns the state, the owning (or most recent) job ID, and when
// the state last changed.
func (r *Register) Snapshot() (State, string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.currentID, r.changedAt
}
