// Package camera is a typed client for the webcam daemon that records
// video/photo evidence of every draw. The daemon is controlled with plain
// GET requests against a configured base URL; recordings and snapshots land
// in a shared media directory under ISO-8601 timestamp filenames.
package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"
)

// timestampLayout names recordings. The webcam daemon writes
// {mediaDir}/{timestamp}.mkv and {mediaDir}/{timestamp}.jpg.
const timestampLayout = "2006-01-02T15:04:05"

// RecordingError reports a failed webcam command. Recording faults are
// logged and never block delivery of whatever media exists.
type RecordingError struct {
	Op  string
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("webcam %s: %v", e.Op, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// Recording identifies one in-flight capture and where its artifacts will be
// found once the daemon finishes writing them.
type Recording struct {
	Label        string
	Timestamp    string
	VideoPath    string
	SnapshotPath string
}

// Client issues commands to the webcam daemon.
type Client struct {
	// BaseURL is the daemon control endpoint, e.g. "http://127.0.0.1:7999/0".
	BaseURL string

	// MediaDir is where the daemon writes movie and snapshot files.
	MediaDir string

	// HTTPClient is used for all requests; http.DefaultClient when nil.
	HTTPClient *http.Client

	// Now is the clock used for recording timestamps; time.Now when nil.
	Now func() time.Time
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) get(ctx context.Context, op, subpath string, query url.Values) error {
	u := c.BaseURL + subpath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &RecordingError{Op: op, Err: err}
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &RecordingError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &RecordingError{Op: op, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return nil
}

// Connect verifies the daemon is reachable. Run at startup before the first
// job is accepted.
func (c *Client) Connect(ctx context.Context) error {
	return c.get(ctx, "connect", "/detection/connection", nil)
}

// StartRecording names the movie and snapshot files after the current
// timestamp and starts an event capture.
func (c *Client) StartRecording(ctx context.Context, label string) (Recording, error) {
	ts := c.now().Format(timestampLayout)
	rec := Recording{
		Label:        label,
		Timestamp:    ts,
		VideoPath:    filepath.Join(c.MediaDir, ts+".mkv"),
		SnapshotPath: filepath.Join(c.MediaDir, ts+".jpg"),
	}

	if err := c.get(ctx, "set movie filename", "/config/set", url.Values{"movie_filename": {ts}}); err != nil {
		return Recording{}, err
	}
	if err := c.get(ctx, "set snapshot filename", "/config/set", url.Values{"snapshot_filename": {ts}}); err != nil {
		return Recording{}, err
	}
	if err := c.get(ctx, "event start", "/action/eventstart", nil); err != nil {
		return Recording{}, err
	}
	return rec, nil
}

// Snapshot triggers a still-image capture.
func (c *Client) Snapshot(ctx context.Context) error {
	return c.get(ctx, "snapshot", "/action/snapshot", nil)
}

// StopRecording takes a final snapshot and ends the event capture.
func (c *Client) StopRecording(ctx context.Context) error {
	if err := c.Snapshot(ctx); err != nil {
		return err
	}
	return c.get(ctx, "event end", "/action/eventend", nil)
}
