package api

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inkworks/plotbot/internal/camera"
	"github.com/inkworks/plotbot/internal/gpio"
	"github.com/inkworks/plotbot/internal/jobdb"
	"github.com/inkworks/plotbot/internal/path"
	"github.com/inkworks/plotbot/internal/pipeline"
	"github.com/inkworks/plotbot/internal/plotter"
)

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, source string) (path.PathSet, error) {
	return path.PathSet{{Name: "t", Strokes: []path.Stroke{{{0, 0}, {10, 10}}}}}, nil
}

type stubDriver struct{}

func (stubDriver) Drive(ctx context.Context, ps path.PathSet) error { return nil }
func (stubDriver) Park(ctx context.Context) error                   { return nil }

type stubMessenger struct{}

func (stubMessenger) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}
func (stubMessenger) Reply(ctx context.Context, channel, text string) error { return nil }
func (stubMessenger) Deliver(ctx context.Context, channel, localPath, name, caption string) error {
	return nil
}

var _ plotter.Driver = stubDriver{}

func newTestServer(t *testing.T, store *jobdb.DB) (*Server, *pipeline.Controller) {
	t.Helper()
	cam := &camera.NopRecorder{MediaDir: t.TempDir()}
	ctrl := pipeline.New(pipeline.Config{
		Executor:  stubExecutor{},
		Driver:    stubDriver{},
		Clear:     gpio.NopLine{},
		Camera:    cam,
		Session:   &camera.Session{Recorder: cam},
		Messenger: stubMessenger{},
		Range:     path.Range{Min: 0, Max: 120},
		WorkDir:   t.TempDir(),
	})
	return NewServer(context.Background(), ctrl, store), ctrl
}

func TestSubmitJobAccepted(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	req := httptest.NewRequest("POST", "/jobs?channel=web", strings.NewReader(`turtle("x")`))
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)
	ctrl.Wait()

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %q)", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["job_id"] == "" {
		t.Error("response has no job_id")
	}
}

func TestSubmitJobMultipart(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	var body strings.Builder
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "drawing.lua")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(`turtle("x")`))
	mw.Close()

	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)
	ctrl.Wait()

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 (body %q)", w.Code, w.Body.String())
	}
}

func TestSubmitEmptyBodyIgnored(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest("POST", "/jobs", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestSubmitWhileBusyConflicts(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	// occupy the slot directly; the HTTP layer only translates ErrBusy
	if err := ctrl.Register().Begin("job-held"); err != nil {
		t.Fatal(err)
	}
	defer ctrl.Register().Finish(pipeline.Succeeded)

	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(`turtle("x")`))
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "busy") {
		t.Errorf("body = %q, want a busy message", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["state"] != "idle" {
		t.Errorf("state = %v, want idle", resp["state"])
	}
}

func TestListJobsWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", w.Code)
	}
}

func TestListJobsWithStore(t *testing.T) {
	db, err := jobdb.NewDB(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.MigrateUp("../migrations"); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := db.RecordJob("job-1", "web", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	srv, _ := newTestServer(t, db)
	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", w.Code, w.Body.String())
	}
	var jobs []jobdb.JobRecord
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-1" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestActivityChart(t *testing.T) {
	db, err := jobdb.NewDB(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.MigrateUp("../migrations"); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := db.RecordJob("job-1", "web", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	srv, _ := newTestServer(t, db)
	req := httptest.NewRequest("GET", "/activity", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Drawing jobs per day") {
		t.Error("chart output missing its title")
	}
}

func TestJobsMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest("DELETE", "/jobs", nil)
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
