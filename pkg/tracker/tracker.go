// Package tracker counts fetch and cache activity per provider for the
// stats endpoint.
package tracker

import "sync"

// ProviderStats holds counters for one provider (predictor, buildings,
// segments, ...).
type ProviderStats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Success     int64 `json:"success"`
	Failures    int64 `json:"failures"`
	// Discarded counts late results dropped because a newer request of the
	// same flow superseded them.
	Discarded int64 `json:"discarded"`
}

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*ProviderStats
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{stats: make(map[string]*ProviderStats)}
}

func (t *Tracker) bump(provider string, f func(*ProviderStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[provider]
	if !ok {
		s = &ProviderStats{}
		t.stats[provider] = s
	}
	f(s)
}

func (t *Tracker) CacheHit(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.CacheHits++ })
}

func (t *Tracker) CacheMiss(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.CacheMisses++ })
}

func (t *Tracker) Success(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.Success++ })
}

func (t *Tracker) Failure(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.Failures++ })
}

func (t *Tracker) Discard(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.Discarded++ })
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}
