// Package api exposes the daemon's HTTP surface: job submission, status,
// history, and an activity chart. Admin debugging routes are attached
// separately by the plotter and job store.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/inkworks/plotbot/internal/httputil"
	"github.com/inkworks/plotbot/internal/jobdb"
	"github.com/inkworks/plotbot/internal/pipeline"
	"github.com/inkworks/plotbot/internal/version"
)

// Server handles the public API routes.
type Server struct {
	ctx   context.Context // daemon lifetime, not per-request
	ctrl  *pipeline.Controller
	store *jobdb.DB // may be nil
}

// NewServer creates an API server around the pipeline controller. store may
// be nil when job history is disabled.
func NewServer(ctx context.Context, ctrl *pipeline.Controller, store *jobdb.DB) *Server {
	return &Server{ctx: ctx, ctrl: ctrl, store: store}
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", s.jobsHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/activity", s.activityHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "plotbot %s: POST /api/jobs with a drawing program to plot it\n", version.Version)
}

func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitJob(w, r)
	case http.MethodGet:
		s.listJobs(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// submitJob accepts a drawing program, either as the "file" part of a
// multipart form or as the raw request body. Only the first attachment is
// used; a submission without one is ignored.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = "api"
	}

	var source string
	if mf, _, err := r.FormFile("file"); err == nil {
		defer mf.Close()
		data, err := io.ReadAll(mf)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "failed to read attachment")
			return
		}
		source = string(data)
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		source = string(data)
	}

	id, err := s.ctrl.Submit(s.ctx, pipeline.Request{Channel: channel, Source: source})
	if errors.Is(err, pipeline.ErrBusy) {
		httputil.WriteJSONError(w, http.StatusConflict, "the machine is busy drawing; try again in a few minutes")
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit job: %v", err))
		return
	}
	if id == "" {
		// submission carried no program; nothing was admitted
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "job history is disabled")
		return
	}
	jobs, err := s.store.RecentJobs(50)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve jobs: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jobs)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	state, jobID, changedAt := s.ctrl.Register().Snapshot()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"state":      state,
		"job_id":     jobID,
		"changed_at": changedAt,
	})
}

// activityHandler renders a jobs-per-day bar chart (HTML) for a quick look
// at machine usage without any separate UI.
func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "job history is disabled")
		return
	}
	counts, err := s.store.CountByDay(30)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve activity: %v", err))
		return
	}

	days := make([]string, 0, len(counts))
	values := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		days = append(days, c.Day)
		values = append(values, opts.BarData{Value: c.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Drawing jobs per day",
		Subtitle: "last 30 days",
	}))
	bar.SetXAxis(days).AddSeries("jobs", values)

	if err := bar.Render(w); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
	}
}
