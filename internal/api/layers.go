package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"coastwatch/pkg/model"
	"coastwatch/pkg/registry"
)

// LayersHandler exposes the layer registry.
type LayersHandler struct {
	registry *registry.Registry
}

// NewLayersHandler creates the handler.
func NewLayersHandler(reg *registry.Registry) *LayersHandler {
	return &LayersHandler{registry: reg}
}

// LayerDTO is the list-view shape of a layer, without its geometry.
type LayerDTO struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Kind         model.LayerKind    `json:"kind"`
	GeometryType model.GeometryType `json:"geometryType"`
	Visible      bool               `json:"visible"`
	Style        model.Style        `json:"style"`
	FeatureCount int                `json:"featureCount"`
}

// HandleList returns all layers in registry order.
func (h *LayersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	layers := h.registry.List()
	out := make([]LayerDTO, 0, len(layers))
	for _, e := range layers {
		out = append(out, LayerDTO{
			ID:           e.ID,
			Name:         e.Name,
			Kind:         e.Kind,
			GeometryType: e.GeometryType,
			Visible:      e.Visible,
			Style:        e.Style,
			FeatureCount: len(e.Features),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet returns one layer as a GeoJSON FeatureCollection.
func (h *LayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := h.registry.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: unknown layer %q", model.ErrValidation, id))
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range entry.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Attributes {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":               entry.ID,
		"name":             entry.Name,
		"kind":             entry.Kind,
		"geometryType":     entry.GeometryType,
		"visible":          entry.Visible,
		"style":            entry.Style,
		"popup":            entry.Popup,
		"spatialReference": entry.SpatialReference,
		"features":         fc,
	})
}

// HandleVisibility toggles a layer's display flag. Memory-only: the
// snapshot is not rewritten for visibility changes.
func (h *LayersHandler) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	if !h.registry.SetVisible(id, body.Visible) {
		writeError(w, fmt.Errorf("%w: unknown layer %q", model.ErrValidation, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "visible": body.Visible})
}

// HandleRemove deletes a non-base layer. Unknown ids and the base layer
// report notFound; neither is an error.
func (h *LayersHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, removed := h.registry.Remove(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"removed":   removed,
		"persisted": status,
	})
}

// HandleClear removes every non-base layer.
func (h *LayersHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	status := h.registry.ClearAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"persisted": status})
}
