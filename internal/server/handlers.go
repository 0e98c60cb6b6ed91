package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/validation"
	"localbiz-extractor/internal/models"
)

// handleExtract validates the request body against the JSON schema, runs the
// extraction and maps the outcome onto the response envelopes. An extraction
// that fails after validation still answers 200 with success=false; only a
// bad request (400) and pool exhaustion (429) use error status codes.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidRequest, "request body is not valid JSON"))
		return
	}

	if err := validation.ValidateExtractRequest(doc); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req := models.ExtractionRequest{
		URL: doc["url"].(string),
	}
	if v, ok := doc["force_refresh"].(bool); ok {
		req.ForceRefresh = v
	}
	if v, ok := doc["description"].(string); ok {
		req.Description = v
	}

	res, err := s.orch.Extract(r.Context(), req)
	if err != nil {
		switch errors.Code(err) {
		case errors.ErrCodeInvalidRequest:
			s.writeError(w, http.StatusBadRequest, err)
		case errors.ErrCodePoolExhausted:
			w.Header().Set("Retry-After", strconv.Itoa(5))
			s.writeError(w, http.StatusTooManyRequests, err)
		default:
			s.writeError(w, http.StatusOK, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, models.ExtractResponse{
		Success:     true,
		Script:      res.Script,
		Cached:      res.Cached,
		ExtractedAt: res.ExtractedAt.Format(time.RFC3339),
	})
}

// handleHealth sweeps expired fast-tier entries and reports service status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.orch.Cache().ClearExpired(ctx)

	s.writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		CacheSize: s.orch.Cache().Len(ctx),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.Cache().Stats(r.Context()))
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.orch.Cache().ClearAll(r.Context())
	s.log.Info("cache cleared", map[string]interface{}{"removed": removed})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	removed := s.orch.Cache().ClearExpired(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encoding response", nil)
	}
}

// writeError renders the failure envelope with a human-readable message and
// the error code; internal detail stays out of the response.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	std := errors.AsStandard(err)
	s.writeJSON(w, status, models.ErrorResponse{
		Success:     false,
		Error:       std.Message,
		ErrorCode:   string(std.Code),
		ExtractedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
