package camera

import (
	"context"
	"path/filepath"
	"time"

	"github.com/inkworks/plotbot/internal/monitoring"
)

// NopRecorder implements Recorder without a webcam, for dev mode. It hands
// out plausible media paths but records nothing; deliveries of the missing
// files fail and are logged, which is the normal non-fatal delivery path.
type NopRecorder struct {
	MediaDir string
}

func (n *NopRecorder) Connect(ctx context.Context) error { return nil }

func (n *NopRecorder) StartRecording(ctx context.Context, label string) (Recording, error) {
	ts := time.Now().Format(timestampLayout)
	monitoring.Logf("nop recorder: pretending to record %s (%s)", label, ts)
	return Recording{
		Label:        label,
		Timestamp:    ts,
		VideoPath:    filepath.Join(n.MediaDir, ts+".mkv"),
		SnapshotPath: filepath.Join(n.MediaDir, ts+".jpg"),
	}, nil
}

func (n *NopRecorder) StopRecording(ctx context.Context) error { return nil }
