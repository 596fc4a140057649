package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mindloom/mindloom/internal/engine"
	"github.com/mindloom/mindloom/internal/index"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, index.ErrNotFound):
		writeError(w, http.StatusNotFound, "memory not found")
	default:
		log.Printf("server: request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleIngest accepts one memory and runs the ingestion pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req engine.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := s.engine.IngestMemory(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.hub.Publish(Event{Type: "memory_ingested", UserID: req.UserID, MemoryID: report.MemoryID})
	writeJSON(w, http.StatusCreated, report)
}

// searchRequest is the search endpoint body.
type searchRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Top    int    `json:"top,omitempty"`

	Domain          string     `json:"domain,omitempty"`
	Category        string     `json:"category,omitempty"`
	Source          string     `json:"source,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	MinAIConfidence float64    `json:"min_ai_confidence,omitempty"`
	MinImportance   float64    `json:"min_importance,omitempty"`
	Since           *time.Time `json:"since,omitempty"`
}

// searchResponse wraps the result list.
type searchResponse struct {
	Results []index.Result `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	filter := index.Filter{
		Domain:          req.Domain,
		Category:        req.Category,
		Source:          req.Source,
		Tags:            req.Tags,
		MinAIConfidence: req.MinAIConfidence,
		MinImportance:   req.MinImportance,
		Since:           req.Since,
	}

	results, err := s.engine.SearchMemories(r.Context(), req.UserID, req.Query, filter, req.Top)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if results == nil {
		results = []index.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

// answerRequest is the answer endpoint body.
type answerRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	answer, err := s.engine.AnswerQuestion(r.Context(), req.UserID, req.Question)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.hub.Publish(Event{Type: "question_answered", UserID: req.UserID})
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.GetMemory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.engine.GetMemory(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.engine.DeleteMemory(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}

	s.hub.Publish(Event{Type: "memory_deleted", UserID: record.UserID, MemoryID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.engine.Health(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
