package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"coastwatch/pkg/config"
	"coastwatch/pkg/model"
	"coastwatch/pkg/store"
)

// SettingsHandler exposes the session settings the map UI restores on
// load: last prediction years, active buffer distance, basemap choice.
type SettingsHandler struct {
	settings config.Provider
	state    store.StateStore
}

// NewSettingsHandler creates the handler. state may be nil, making the
// settings read-only.
func NewSettingsHandler(settings config.Provider, st store.StateStore) *SettingsHandler {
	return &SettingsHandler{settings: settings, state: st}
}

type SettingsResponse struct {
	BufferDistance  float64   `json:"bufferDistance"`
	BufferDistances []float64 `json:"bufferDistances"`
	LastLineYear    int       `json:"lastLineYear"`
	LastPointYear   int       `json:"lastPointYear"`
	Basemap         string    `json:"basemap"`
	ShowBaseLayer   bool      `json:"showBaseLayer"`
}

// SettingsUpdate carries the user-changeable settings. Absent fields are
// left untouched.
type SettingsUpdate struct {
	Basemap       *string `json:"basemap"`
	ShowBaseLayer *bool   `json:"showBaseLayer"`
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current(r))
}

func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, fmt.Errorf("%w: invalid settings body: %v", model.ErrValidation, err))
		return
	}
	if upd.Basemap != nil && *upd.Basemap == "" {
		writeError(w, fmt.Errorf("%w: basemap must not be empty", model.ErrValidation))
		return
	}

	ctx := r.Context()
	if h.state != nil {
		if upd.Basemap != nil {
			if err := h.state.SetState(ctx, config.KeyBasemap, *upd.Basemap); err != nil {
				writeError(w, fmt.Errorf("%w: %v", model.ErrPersistence, err))
				return
			}
		}
		if upd.ShowBaseLayer != nil {
			if err := h.state.SetState(ctx, config.KeyShowBaseLayer, strconv.FormatBool(*upd.ShowBaseLayer)); err != nil {
				writeError(w, fmt.Errorf("%w: %v", model.ErrPersistence, err))
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, h.current(r))
}

func (h *SettingsHandler) current(r *http.Request) SettingsResponse {
	ctx := r.Context()
	cfg := h.settings.AppConfig()

	distances := make([]float64, 0, len(cfg.Assess.BufferDistances))
	for _, d := range cfg.Assess.BufferDistances {
		distances = append(distances, float64(d))
	}

	return SettingsResponse{
		BufferDistance:  h.settings.BufferDistance(ctx),
		BufferDistances: distances,
		LastLineYear:    h.settings.LastLineYear(ctx),
		LastPointYear:   h.settings.LastPointYear(ctx),
		Basemap:         h.settings.Basemap(ctx),
		ShowBaseLayer:   h.settings.ShowBaseLayer(ctx),
	}
}
