// Package api serves stored runs, bug reports and submissions as JSON over
// HTTP, alongside the Prometheus metrics endpoint.
//
// Routes:
//
//	GET  /api/test-runs                 ?status=&tag=&url=&from=&to=
//	GET  /api/test-runs/{id}
//	GET  /api/test-runs/{id}/export     ?format=json|junit|markdown|html
//	GET  /api/bug-reports               ?severity=&tag=&url=&from=&to=
//	GET  /api/bug-reports/{id}
//	POST /api/bug-reports/{id}/publish  ?provider=github|jira
//	GET  /api/submissions
//	POST /api/submissions               {"url": "..."}
//	GET  /api/submissions/{id}
//	POST /api/submissions/{id}/retry
//	GET  /api/evidence                  ?path=
//	GET  /metrics
//	GET  /healthz
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/bugzapp/internal/publish"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// SubmissionQueue is the part of the submission queue the API drives.
// *submission.Queue satisfies it.
type SubmissionQueue interface {
	Create(ctx context.Context, rawURL string) (qa.SubmissionRecord, error)
	Retry(ctx context.Context, id string) (qa.SubmissionRecord, error)
	List() []qa.SubmissionRecord
	Get(id string) (qa.SubmissionRecord, error)
}

// StoredPublisher publishes stored bug reports. *publish.Publisher
// satisfies it.
type StoredPublisher interface {
	PublishStored(ctx context.Context, reports publish.ReportStore, id string, provider qa.IssueProvider) publish.Outcome
}

// Options configures a Server. Storage is required; a nil Queue, Publisher
// or Metrics disables the corresponding routes.
type Options struct {
	Storage   store.Storage
	Queue     SubmissionQueue
	Publisher StoredPublisher
	Metrics   http.Handler

	// EvidenceDir bounds the files /api/evidence may serve.
	EvidenceDir string

	Logger *slog.Logger
}

// Server is the HTTP front end. It holds no state of its own.
type Server struct {
	storage     store.Storage
	queue       SubmissionQueue
	publisher   StoredPublisher
	metrics     http.Handler
	evidenceDir string
	logger      *slog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		storage:     opts.Storage,
		queue:       opts.Queue,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		evidenceDir: opts.EvidenceDir,
		logger:      opts.Logger,
	}
	if s.evidenceDir == "" {
		s.evidenceDir = "evidence"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/test-runs", s.listTestRuns)
	mux.HandleFunc("GET /api/test-runs/{id}", s.getTestRun)
	mux.HandleFunc("GET /api/test-runs/{id}/export", s.exportTestRun)
	mux.HandleFunc("GET /api/bug-reports", s.listBugReports)
	mux.HandleFunc("GET /api/bug-reports/{id}", s.getBugReport)
	mux.HandleFunc("GET /api/evidence", s.serveEvidence)

	if s.publisher != nil {
		mux.HandleFunc("POST /api/bug-reports/{id}/publish", s.publishBugReport)
	}
	if s.queue != nil {
		mux.HandleFunc("GET /api/submissions", s.listSubmissions)
		mux.HandleFunc("POST /api/submissions", s.createSubmission)
		mux.HandleFunc("GET /api/submissions/{id}", s.getSubmission)
		mux.HandleFunc("POST /api/submissions/{id}/retry", s.retrySubmission)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// writeError maps qa error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case qa.IsNotFound(err):
		status = http.StatusNotFound
	case qa.IsValidation(err):
		status = http.StatusBadRequest
	case qa.IsInvalidTransition(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
	}

	body := errorBody{Error: err.Error()}
	var qe *qa.Error
	if errors.As(err, &qe) {
		body.Code = string(qe.Code)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: string(qa.ErrCodeValidation)})
}
