// Package chat talks to the messaging front end that job requests arrive
// from. The front end itself (message routing, attachment hosting) lives
// outside this process; this client only fetches attachments, posts
// plain-text replies, and uploads result media back to the originating
// channel through a webhook endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inkworks/plotbot/internal/monitoring"
)

// DeliveryError reports a failed media upload. Delivery faults are logged
// per file and never fail the job as a whole.
type DeliveryError struct {
	Name string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Name, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Messenger is the interface the job pipeline needs from the front end.
type Messenger interface {
	// FetchAttachment downloads the submitted source file.
	FetchAttachment(ctx context.Context, url string) ([]byte, error)
	// Reply posts a plain-text message to the originating channel.
	// Best effort: callers treat a failed reply as non-fatal.
	Reply(ctx context.Context, channel, text string) error
	// Deliver uploads a local file to the originating channel with a display
	// name and optional caption, then removes the local file unconditionally
	// after the attempt.
	Deliver(ctx context.Context, channel, localPath, name, caption string) error
}

// WebhookClient implements Messenger against a webhook-style HTTP endpoint:
// POST {url}/messages for text, POST {url}/files (multipart) for uploads.
type WebhookClient struct {
	URL        string
	HTTPClient *http.Client
}

func (c *WebhookClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// FetchAttachment implements Messenger.
func (c *WebhookClient) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attachment: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Reply implements Messenger.
func (c *WebhookClient) Reply(ctx context.Context, channel, text string) error {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"content": text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("reply: unexpected status %s", resp.Status)
	}
	return nil
}

// Deliver implements Messenger. The local file is removed after the upload
// attempt whether or not it succeeded; delivery owns the temporary-file
// lifecycle.
func (c *WebhookClient) Deliver(ctx context.Context, channel, localPath, name, caption string) error {
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			monitoring.Logf("failed to remove delivered file %s: %v", localPath, err)
		}
	}()

	if err := c.upload(ctx, channel, localPath, name, caption); err != nil {
		return &DeliveryError{Name: name, Err: err}
	}
	return nil
}

func (c *WebhookClient) upload(ctx context.Context, channel, localPath, name, caption string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("channel", channel); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	if name == "" {
		name = filepath.Base(localPath)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/files", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
