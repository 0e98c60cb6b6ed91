package models

import "time"

// MaxDescriptionLength bounds the caller-supplied description override.
const MaxDescriptionLength = 500

// ExtractionRequest is one inbound extraction call, immutable once created.
type ExtractionRequest struct {
	URL          string `json:"url"`
	ForceRefresh bool   `json:"force_refresh"`
	Description  string `json:"description,omitempty"`
}

// ExtractResponse is the success envelope returned to API callers.
type ExtractResponse struct {
	Success     bool   `json:"success"`
	Script      string `json:"script,omitempty"`
	Cached      bool   `json:"cached"`
	ExtractedAt string `json:"extracted_at"`
}

// ErrorResponse is the failure envelope. Internal stack detail never crosses
// this boundary.
type ErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	ErrorCode   string `json:"error_code,omitempty"`
	ExtractedAt string `json:"extracted_at"`
}

// CacheInfo is the per-entry metadata tracked by the cache tiers.
type CacheInfo struct {
	URL       string    `json:"url"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int       `json:"hit_count"`
}

// CacheStats summarizes one tier snapshot for the admin surface.
type CacheStats struct {
	Tier           string  `json:"tier"`
	TotalEntries   int     `json:"total_entries"`
	ActiveEntries  int     `json:"active_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	TotalHits      int     `json:"total_hits"`
	HitRate        float64 `json:"hit_rate"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	CacheSize int       `json:"cache_size"`
}
