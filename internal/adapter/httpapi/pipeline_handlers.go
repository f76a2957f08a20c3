package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/couchcryptid/clima-scope/internal/pipeline"
)

var countyIDPattern = regexp.MustCompile(`^\d{2}$`)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleProcess accepts a raw county weather report and starts a pipeline.
// With async_mode=true the call returns 202 immediately; otherwise it runs
// the pipeline to completion and returns the final status.
//
// Only the addressing fields are validated here. A county id or period date
// that is present but malformed can never identify an execution, so it is
// rejected with 400; everything else about the payload is the validating
// stage's job, and its failures surface through status polling.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawReport
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if countyID, ok := raw["county_id"].(string); ok && !countyIDPattern.MatchString(countyID) {
		writeError(w, http.StatusBadRequest, "county_id must be a two-digit code")
		return
	}
	start, end := raw.Period()
	for _, date := range []string{start, end} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "period dates must be ISO dates (YYYY-MM-DD)")
			return
		}
	}

	created := s.orch.Create(r.Context(), raw)

	if r.URL.Query().Get("async_mode") == "true" {
		s.orch.ExecuteAsync(created.PipelineID)
		writeJSON(w, http.StatusAccepted, created)
		return
	}

	// A stage failure is a pipeline outcome, not a transport error: the
	// caller gets the terminal payload and reads the cause from it.
	final, err := s.orch.Execute(r.Context(), created.PipelineID)
	if err != nil && final.Status != domain.StatusFailed {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	payload := s.orch.Get(r.PathValue("id"))
	if payload == nil {
		writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := pipeline.ListFilter{CountyID: q.Get("county_id")}
	if statusParam := q.Get("status"); statusParam != "" {
		status := domain.Status(statusParam)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+statusParam)
			return
		}
		filter.Status = status
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pipelines": s.orch.List(filter),
	})
}

func (s *Server) handleCancelPipeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.orch.Cancel(r.Context(), id) {
		writeError(w, http.StatusNotFound, "pipeline not found or already completed")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Get(id))
}
