package api

import (
	"encoding/json"
	"net/http"
)

type createSubmissionRequest struct {
	URL string `json:"url"`
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		badRequest(w, "Request body must be JSON with a url field.")
		return
	}
	record, err := s.queue.Create(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	record, err := s.queue.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) retrySubmission(w http.ResponseWriter, r *http.Request) {
	record, err := s.queue.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}
