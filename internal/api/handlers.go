package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/synapse-gw/internal/auth"
	"github.com/mattjoyce/synapse-gw/internal/dispatch"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		Version:       s.config.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Tasks:         []string{},
	}
	for _, t := range s.deps.Tasks.Tasks() {
		resp.Tasks = append(resp.Tasks, string(t))
	}
	if s.deps.Scheduler != nil {
		resp.SchedulerPending = s.deps.Scheduler.Pending()
		resp.SchedulerActive = s.deps.Scheduler.Active()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTextToSpeechClone handles POST /text-to-speech-clone.
func (s *Server) handleTextToSpeechClone(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.execute(w, r, synapse.TaskTextToSpeechClone, body)
}

// handleAvailableTasks handles GET /available-tasks.
func (s *Server) handleAvailableTasks(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, synapse.TaskAvailableTasks, nil)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, task synapse.Task, body []byte) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	res, err := s.deps.Executor.Execute(r.Context(), dispatch.Request{
		Task:   task,
		Caller: principal.Caller,
		Body:   body,
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	w.Header().Set(QueryIDHeader, res.QueryID)
	respondJSON(w, http.StatusOK, res.Response)
}

// writeQueryError maps executor errors onto HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	var (
		verr *dispatch.ValidationError
		rej  *dispatch.AdmissionRejected
		nvr  *dispatch.NoValidResponse
	)
	switch {
	case errors.As(err, &verr):
		w.Header().Set(QueryIDHeader, verr.QueryID)
		status := http.StatusBadRequest
		if verr.Err != nil {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, verr.Detail)
	case errors.As(err, &rej):
		w.Header().Set(QueryIDHeader, rej.QueryID)
		s.writeError(w, http.StatusForbidden, rej.Reason)
	case errors.As(err, &nvr):
		w.Header().Set(QueryIDHeader, nvr.QueryID)
		s.writeError(w, http.StatusBadRequest, dispatch.DetailNoValidResponse)
	default:
		s.logger.Error("query execution failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readBody reads at most MaxBodyBytes of the request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// handleGetQuery handles GET /query/{queryID}.
func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.writeError(w, http.StatusNotFound, "query history disabled")
		return
	}
	queryID := chi.URLParam(r, "queryID")

	rec, err := s.deps.History.Get(r.Context(), queryID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "query not found")
			return
		}
		s.logger.Error("failed to retrieve query", "query_id", queryID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve query")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.config.Version))
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Detail: message})
}
