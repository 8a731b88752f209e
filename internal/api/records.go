package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/report"
	"github.com/roach88/bugzapp/internal/store"
)

// ParseQuery reads tag (repeatable), url, severity, from and to. Date bounds
// accept a plain date, which covers the whole UTC day, or a timestamp.
func ParseQuery(values url.Values) (store.Query, error) {
	q := store.Query{
		Tags:     values["tag"],
		URL:      values.Get("url"),
		Severity: qa.Severity(values.Get("severity")),
	}
	var err error
	if q.From, err = parseBound(values.Get("from"), false); err != nil {
		return store.Query{}, err
	}
	if q.To, err = parseBound(values.Get("to"), true); err != nil {
		return store.Query{}, err
	}
	return q, nil
}

func parseBound(s string, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if day, err := time.Parse(time.DateOnly, s); err == nil {
		if end {
			return day.Add(24*time.Hour - time.Millisecond), nil
		}
		return day, nil
	}
	t, err := qa.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, qa.WrapError(qa.ErrCodeValidation, err, "invalid date %q", s)
	}
	return t, nil
}

func (s *Server) listTestRuns(w http.ResponseWriter, r *http.Request) {
	query, err := ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.storage.SearchTestRuns(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if status := qa.StepStatus(r.URL.Query().Get("status")); status != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Summary.Status == status {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getTestRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.storage.GetTestRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// exportTestRun renders a stored run as a downloadable document.
func (s *Server) exportTestRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.storage.GetTestRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	body, contentType, ext, err := RenderRun(record, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%s.%s", record.ID, ext))
	_, _ = w.Write([]byte(body))
}

// RenderRun renders record in one of the export formats and returns the
// document with its content type and file extension.
func RenderRun(record store.TestRunRecord, format string) (body, contentType, ext string, err error) {
	meta := report.SuiteMeta{ID: record.SuiteID, Description: record.SuiteDescription}
	switch format {
	case "json":
		body, err = report.RenderJSON(record.Summary, meta)
		return body, "application/json", "json", err
	case "junit":
		body, err = report.RenderJUnit(record.Summary, meta)
		return body, "application/xml", "xml", err
	case "markdown", "md":
		body, err = report.RenderMarkdown(record.Summary, meta)
		return body, "text/markdown; charset=utf-8", "md", err
	case "html":
		body, err = report.RenderHTML(record.Summary, meta)
		return body, "text/html; charset=utf-8", "html", err
	}
	return "", "", "", qa.NewError(qa.ErrCodeValidation, "unknown format %q (want json, junit, markdown or html)", format)
}

func (s *Server) listBugReports(w http.ResponseWriter, r *http.Request) {
	query, err := ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.storage.SearchBugReports(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getBugReport(w http.ResponseWriter, r *http.Request) {
	record, err := s.storage.GetBugReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) publishBugReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.storage.GetBugReport(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	provider := qa.IssueProvider(r.URL.Query().Get("provider"))
	switch provider {
	case "":
		provider = qa.ProviderGitHub
	case qa.ProviderGitHub, qa.ProviderJira:
	default:
		badRequest(w, fmt.Sprintf("Unknown provider %q.", provider))
		return
	}
	outcome := s.publisher.PublishStored(r.Context(), s.storage, id, provider)
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcome)
}

// serveEvidence serves one artifact file from inside the evidence directory.
func (s *Server) serveEvidence(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		badRequest(w, "Missing path parameter.")
		return
	}
	root, err := filepath.Abs(s.evidenceDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	target, err := filepath.Abs(raw)
	if err != nil {
		badRequest(w, "Invalid path.")
		return
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		badRequest(w, "Evidence path is outside allowed directory.")
		return
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "evidence not found", Code: string(qa.ErrCodeNotFound)})
		return
	}
	http.ServeFile(w, r, target)
}
