// Package pipeline sequences drawing jobs: it accepts one submission at a
// time, turns the submitted program into machine coordinates, drives the
// plotter inside a webcam recording, and returns the captured media to the
// requester. All failure handling and the single-job concurrency gate live
// here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/inkworks/plotbot/internal/camera"
	"github.com/inkworks/plotbot/internal/chat"
	"github.com/inkworks/plotbot/internal/gpio"
	"github.com/inkworks/plotbot/internal/monitoring"
	"github.com/inkworks/plotbot/internal/path"
	"github.com/inkworks/plotbot/internal/plotter"
	"github.com/inkworks/plotbot/internal/turtle"
)

// Executor turns untrusted program text into paths.
type Executor interface {
	Execute(ctx context.Context, source string) (path.PathSet, error)
}

// RecordingSession wraps a unit of work in a webcam capture.
// camera.Session implements it.
type RecordingSession interface {
	Record(ctx context.Context, label string, body func(context.Context) error) (camera.Recording, error)
}

// Previewer renders a still preview image of a path set.
type Previewer interface {
	Render(ps path.PathSet, r path.Range, outPath string) error
}

// Store records job history. It is never load-bearing: every store error is
// logged and otherwise ignored.
type Store interface {
	RecordJob(id, channel string, submittedAt time.Time) error
	FinishJob(id, state, class, errText, video, snapshot string) error
}

// Config wires the controller's collaborators.
type Config struct {
	Executor  Executor
	Driver    plotter.Driver
	Clear     gpio.Line
	Camera    camera.Recorder
	Session   RecordingSession
	Messenger chat.Messenger
	Store     Store     // optional
	Preview   Previewer // optional

	Range           path.Range
	ClearPulseWidth time.Duration
	WorkDir         string // scratch directory for preview images
}

// Controller is the top-level job state machine.
type Controller struct {
	cfg      Config
	register *Register
	wg       sync.WaitGroup
}

// New creates a Controller in the Idle state.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg, register: NewRegister()}
}

// Register exposes the job slot for status reporting.
func (c *Controller) Register() *Register {
	return c.register
}

// Startup brings the hardware to a known state before the first job:
// verifies the webcam is reachable, clears any stale recording left by a
// crash, parks the pen at the origin, and pulses the board clear line. The
// daemon must not accept a job until this has succeeded.
func (c *Controller) Startup(ctx context.Context) error {
	if err := c.cfg.Camera.Connect(ctx); err != nil {
		return fmt.Errorf("webcam not reachable: %w", err)
	}
	if err := c.cfg.Camera.StopRecording(ctx); err != nil {
		// expected when no recording was left running
		monitoring.Logf("startup: clearing stale recording: %v", err)
	}
	if err := c.cfg.Driver.Park(ctx); err != nil {
		return fmt.Errorf("park at origin: %w", err)
	}
	if err := c.cfg.Clear.Pulse(ctx, c.cfg.ClearPulseWidth); err != nil {
		return fmt.Errorf("clear pulse: %w", err)
	}
	return nil
}

// Submit admits a request and returns the new job's ID. It returns ErrBusy
// synchronously while another job runs (after a best-effort busy reply to
// the requester); requests are never queued. A request carrying no program
// at all is ignored and produces no job. The job itself runs on a goroutine
// bound to ctx, which should be the daemon's lifetime context rather than a
// per-request one.
func (c *Controller) Submit(ctx context.Context, req Request) (string, error) {
	if req.Source == "" && req.AttachmentURL == "" {
		return "", nil
	}

	job := newJob(req)
	if err := c.register.Begin(job.ID); err != nil {
		if rerr := c.cfg.Messenger.Reply(ctx, req.Channel, "The machine is busy drawing; try again in a few minutes."); rerr != nil {
			monitoring.Logf("busy reply failed: %v", rerr)
		}
		return "", err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, job, req)
	}()
	return job.ID, nil
}

// Wait blocks until any running job has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Shutdown best-effort releases the hardware on process exit.
func (c *Controller) Shutdown(ctx context.Context) {
	if err := c.cfg.Driver.Park(ctx); err != nil {
		monitoring.Logf("shutdown park failed: %v", err)
	}
}

// classify maps an error to the taxonomy label recorded in job history.
func classify(err error) string {
	var execErr *turtle.ExecError
	var hwErr *plotter.HardwareError
	var recErr *camera.RecordingError
	switch {
	case errors.As(err, &execErr):
		return "execution"
	case errors.As(err, &hwErr):
		return "hardware"
	case errors.As(err, &recErr):
		return "recording"
	default:
		return "internal"
	}
}

// run executes one job end to end. Every exit path releases the job slot;
// every user-visible failure is a single plain-text reply quoting the
// underlying error.
func (c *Controller) run(ctx context.Context, job *Job, req Request) {
	var rec camera.Recording
	var runErr error

	// The slot release is deferred so no failure mode, including a panic
	// unwinding toward the process boundary, can leave the gate stuck.
	defer func() {
		if runErr == nil {
			c.register.Finish(Succeeded)
			c.finishStore(job.ID, Succeeded, "", "", rec)
			return
		}
		c.register.Finish(Failed)
		c.finishStore(job.ID, Failed, classify(runErr), runErr.Error(), rec)
		if err := c.cfg.Messenger.Reply(ctx, job.Channel, fmt.Sprintf("Drawing failed: %v", runErr)); err != nil {
			monitoring.Logf("failure reply failed: %v", err)
		}
	}()

	if c.cfg.Store != nil {
		if err := c.cfg.Store.RecordJob(job.ID, job.Channel, job.SubmittedAt); err != nil {
			monitoring.Logf("job %s: record failed: %v", job.ID, err)
		}
	}

	job.Source = req.Source
	if job.Source == "" {
		data, err := c.cfg.Messenger.FetchAttachment(ctx, req.AttachmentURL)
		if err != nil {
			runErr = fmt.Errorf("fetch attachment: %w", err)
			return
		}
		job.Source = string(data)
	}

	// Execution happens before any hardware is touched; a hostile or broken
	// program can never move the pen.
	ps, err := c.cfg.Executor.Execute(ctx, job.Source)
	if err != nil {
		runErr = err
		return
	}

	ps = path.Normalize(ps, c.cfg.Range)

	if err := c.cfg.Messenger.Reply(ctx, job.Channel, "Pen is on the paper, drawing now. Video follows when it's done."); err != nil {
		monitoring.Logf("job %s: start notification failed: %v", job.ID, err)
	}

	// The clear pulse erases the board for the new drawing. A clear fault is
	// logged but does not abort the job.
	if err := c.cfg.Clear.Pulse(ctx, c.cfg.ClearPulseWidth); err != nil {
		monitoring.Logf("job %s: clear pulse failed: %v", job.ID, err)
	}

	rec, runErr = c.cfg.Session.Record(ctx, job.ID, func(ctx context.Context) error {
		// Park on the way out whatever the draw did, so the machine is back
		// at the origin before the next job. A park fault never masks the
		// draw's own error.
		defer func() {
			if err := c.cfg.Driver.Park(ctx); err != nil {
				monitoring.Logf("job %s: park after draw failed: %v", job.ID, err)
			}
		}()
		return c.cfg.Driver.Drive(ctx, ps)
	})
	if runErr != nil {
		return
	}

	c.deliver(ctx, job, ps, rec)
}

// deliver uploads the recording, snapshot, and preview to the requester.
// Each delivery is attempted independently; failures are logged per file and
// never roll back the draw.
func (c *Controller) deliver(ctx context.Context, job *Job, ps path.PathSet, rec camera.Recording) {
	if c.cfg.Preview != nil {
		previewPath := filepath.Join(c.cfg.WorkDir, rec.Timestamp+".png")
		if err := c.cfg.Preview.Render(ps, c.cfg.Range, previewPath); err != nil {
			monitoring.Logf("job %s: preview render failed: %v", job.ID, err)
		} else if err := c.cfg.Messenger.Deliver(ctx, job.Channel, previewPath, rec.Timestamp+".png", "plotted path"); err != nil {
			monitoring.Logf("job %s: %v", job.ID, err)
		}
	}

	if err := c.cfg.Messenger.Deliver(ctx, job.Channel, rec.VideoPath, rec.Timestamp+".mkv", "time-lapse of your drawing"); err != nil {
		monitoring.Logf("job %s: %v", job.ID, err)
	}
	if err := c.cfg.Messenger.Deliver(ctx, job.Channel, rec.SnapshotPath, rec.Timestamp+".jpg", "the finished board"); err != nil {
		monitoring.Logf("job %s: %v", job.ID, err)
	}
}

func (c *Controller) finishStore(id string, state State, class, errText string, rec camera.Recording) {
	if c.cfg.Store == nil {
		return
	}
	if err := c.cfg.Store.FinishJob(id, string(state), class, errText, rec.VideoPath, rec.SnapshotPath); err != nil {
		monitoring.Logf("job %s: finish record failed: %v", id, err)
	}
}
