package api

import (
	"net/http"

	"coastwatch/pkg/model"
	"coastwatch/pkg/predict"
	"coastwatch/pkg/registry"
	"coastwatch/pkg/tracker"
)

// StatsHandler reports provider counters and registry totals.
type StatsHandler struct {
	tracker  *tracker.Tracker
	registry *registry.Registry
	coord    *predict.Coordinator
}

// NewStatsHandler creates the handler.
func NewStatsHandler(t *tracker.Tracker, reg *registry.Registry, coord *predict.Coordinator) *StatsHandler {
	return &StatsHandler{tracker: t, registry: reg, coord: coord}
}

type ProviderStatsDTO struct {
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
	APISuccess  int64  `json:"api_success"`
	APIFailures int64  `json:"api_errors"`
	Discarded   int64  `json:"discarded"`
	HitRate     int64  `json:"hit_rate"`
}

type LayerStats struct {
	Base      int `json:"base"`
	Uploaded  int `json:"uploaded"`
	Predicted int `json:"predicted"`
}

type StatsResponse struct {
	Layers    LayerStats                  `json:"layers"`
	Flows     predict.FlowStatus          `json:"flows"`
	Providers map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Flows:     h.coord.Status(),
		Providers: make(map[string]ProviderStatsDTO),
	}

	for _, e := range h.registry.List() {
		switch e.Kind {
		case model.KindBase:
			resp.Layers.Base++
		case model.KindUploaded:
			resp.Layers.Uploaded++
		case model.KindPredicted:
			resp.Layers.Predicted++
		}
	}

	for provider, s := range h.tracker.Snapshot() {
		dto := ProviderStatsDTO{
			CacheHits:   s.CacheHits,
			CacheMisses: s.CacheMisses,
			APISuccess:  s.Success,
			APIFailures: s.Failures,
			Discarded:   s.Discarded,
		}
		if total := s.CacheHits + s.CacheMisses; total > 0 {
			dto.HitRate = s.CacheHits * 100 / total
		}
		resp.Providers[provider] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}
