package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/person-intel/internal/workflow"
)

// SearchRequest represents the request body for /search. The include flags
// default to true when omitted.
type SearchRequest struct {
	Name                string `json:"name" validate:"required,min=2,max=200"`
	IncludeSocialMedia  *bool  `json:"include_social_media,omitempty"`
	IncludePEP          *bool  `json:"include_pep,omitempty"`
	IncludeAdverseMedia *bool  `json:"include_adverse_media,omitempty"`
}

func (r SearchRequest) options() workflow.Options {
	skip := func(include *bool) bool { return include != nil && !*include }
	return workflow.Options{
		SkipSocial: skip(r.IncludeSocialMedia),
		SkipPEP:    skip(r.IncludePEP),
		SkipMedia:  skip(r.IncludeAdverseMedia),
	}
}

// SearchResponse represents the response for /search.
type SearchResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// handleSearch starts a new intelligence run.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	id, err := s.coordinator.StartWithOptions(req.Name, req.options())
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("Started intelligence run %s", id)
	s.jsonResponse(w, http.StatusAccepted, SearchResponse{
		RequestID: id,
		Status:    string(workflow.StatusPending),
	})
}

// handleStatus returns the status of a run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, snapshot)
}

// handleResult returns the finished report, as JSON or markdown.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	report, err := s.coordinator.Result(snapshot.ID)
	if errors.Is(err, workflow.ErrNotFinished) {
		s.errorResponse(w, http.StatusConflict, "Run is not finished: "+string(snapshot.Status))
		return
	}
	if errors.Is(err, workflow.ErrNoReport) {
		s.errorResponse(w, http.StatusConflict, "Run "+string(snapshot.Status)+" without a report")
		return
	}
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(report.ToMarkdown())) //nolint:errcheck
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

// handleCancel cancels a live run. Cancel is a no-op on terminal runs, so the
// response echoes the run's actual status rather than assuming cancelled.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.coordinator.Cancel(id); errors.Is(err, workflow.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	status := workflow.StatusCancelled
	if snapshot, err := s.coordinator.Status(id); err == nil && snapshot.Status.Terminal() {
		status = snapshot.Status
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"request_id": id,
		"status":     string(status),
	})
}

// handleSearchStream starts a run and streams its progress as SSE events.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	id, err := s.coordinator.StartWithOptions(req.Name, req.options())
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	sse.WriteEvent("started", map[string]string{"request_id": id}) //nolint:errcheck

	s.streamRun(r, sse, id)
}

// streamRun polls the run and emits a progress event on every change until
// the run is terminal or the client disconnects.
func (s *Server) streamRun(r *http.Request, sse *SSEWriter, id string) {
	var last workflow.Snapshot
	for {
		snapshot, err := s.coordinator.Status(id)
		if err != nil {
			sse.WriteError("run disappeared")
			return
		}
		if snapshot != last {
			if err := sse.WriteEvent("progress", snapshot); err != nil {
				return
			}
			last = snapshot
		}
		if snapshot.Status.Terminal() {
			break
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.pollInterval):
		}
	}

	if report, err := s.coordinator.Result(id); err == nil {
		sse.WriteEvent("result", report) //nolint:errcheck
	}
	sse.WriteComplete(id, string(last.Status))
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (workflow.Snapshot, bool) {
	id := r.PathValue("id")
	snapshot, err := s.coordinator.Status(id)
	if errors.Is(err, workflow.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return snapshot, false
	}
	return snapshot, true
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
