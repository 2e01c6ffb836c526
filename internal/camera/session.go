package camera

import (
	"context"
	"time"

	"github.com/inkworks/plotbot/internal/monitoring"
)

// Recorder starts and stops webcam captures. Client implements it; tests
// substitute fakes.
type Recorder interface {
	Connect(ctx context.Context) error
	StartRecording(ctx context.Context, label string) (Recording, error)
	StopRecording(ctx context.Context) error
}

// Session wraps a recording around a unit of work with scoped-release
// semantics: once a recording starts it is always stopped, on every exit
// path, after a settle delay that captures a trailing few seconds of
// footage.
type Session struct {
	Recorder Recorder

	// SettleDelay is how long to keep recording after the body returns.
	SettleDelay time.Duration
}

// Record starts a capture, runs body while it is active, then settles and
// stops. A start failure aborts before body runs. A body error propagates
// after the stop has run; a stop failure is logged and never masks the body
// error.
func (s *Session) Record(ctx context.Context, label string, body func(context.Context) error) (Recording, error) {
	rec, err := s.Recorder.StartRecording(ctx, label)
	if err != nil {
		return Recording{}, err
	}

	bodyErr := func() error {
		defer func() {
			// settle, then stop, regardless of how the body exited. The stop
			// runs against a fresh context so a cancelled draw still ends
			// the recording.
			if s.SettleDelay > 0 {
				time.Sleep(s.SettleDelay)
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Recorder.StopRecording(stopCtx); err != nil {
				monitoring.Logf("failed to stop recording %s: %v", rec.Timestamp, err)
			}
		}()
		return body(ctx)
	}()

	return rec, bodyErr
}
