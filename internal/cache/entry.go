// Package cache provides the two-tier business record cache: a small
// in-process LRU in front of a durable Redis tier.
package cache

import (
	"time"

	"localbiz-extractor/internal/models"
)

// Entry is one cached extraction result plus its bookkeeping. StartedAt is
// the moment the producing render began; writes carrying an older StartedAt
// than the stored entry are discarded so a forced refresh is never clobbered
// by a slower, staler render.
type Entry struct {
	Record    models.BusinessRecord `json:"record"`
	URL       string                `json:"url"`
	StartedAt time.Time             `json:"started_at"`
	CachedAt  time.Time             `json:"cached_at"`
	ExpiresAt time.Time             `json:"expires_at"`
	HitCount  int                   `json:"hit_count"`
}

// Expired reports whether the entry's lifetime has passed.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Info projects the entry metadata for the admin surface.
func (e Entry) Info() models.CacheInfo {
	return models.CacheInfo{
		URL:       e.URL,
		CachedAt:  e.CachedAt,
		ExpiresAt: e.ExpiresAt,
		HitCount:  e.HitCount,
	}
}
