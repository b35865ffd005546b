package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"coastwatch/pkg/assess"
	"coastwatch/pkg/crs"
	"coastwatch/pkg/model"
)

// AssessHandler exposes buffer application and the risk checker.
type AssessHandler struct {
	assessor *assess.Assessor
}

// NewAssessHandler creates the handler.
func NewAssessHandler(a *assess.Assessor) *AssessHandler {
	return &AssessHandler{assessor: a}
}

// HandleBuffer applies a hazard buffer and returns the intersection counts
// plus the buffer outline as GeoJSON. distance <= 0 clears the buffer.
func (h *AssessHandler) HandleBuffer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LayerID  string  `json:"layerId"`
		Distance float64 `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	result, err := h.assessor.ApplyBuffer(r.Context(), body.LayerID, body.Distance)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"layerId":         result.LayerID,
		"bufferDistance":  result.DistanceMeters,
		"totalBuildings":  result.TotalBuildings,
		"atRiskBuildings": result.AtRiskCount,
	}
	if result.Buffer != nil {
		resp["buffer"] = geojson.NewGeometry(result.Buffer)
		resp["bbox"] = []float64{
			result.Bounds.Min.X(), result.Bounds.Min.Y(),
			result.Bounds.Max.X(), result.Bounds.Max.Y(),
		}

		fc := geojson.NewFeatureCollection()
		for _, f := range result.AtRisk {
			gf := geojson.NewFeature(f.Geometry)
			for k, v := range f.Attributes {
				gf.Properties[k] = v
			}
			fc.Append(gf)
		}
		resp["atRisk"] = fc
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRisk classifies the distance from a clicked point to the nearest
// predicted shoreline. Coordinates default to WGS84 unless epsg says
// otherwise.
func (h *AssessHandler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		X    *float64 `json:"x"`
		Y    *float64 `json:"y"`
		EPSG int      `json:"epsg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	if body.X == nil || body.Y == nil {
		writeError(w, fmt.Errorf("%w: x and y are required", model.ErrValidation))
		return
	}
	epsg := body.EPSG
	if epsg == 0 {
		epsg = crs.EPSGWGS84
	}

	result, err := h.assessor.CheckRisk(r.Context(), orb.Point{*body.X, *body.Y}, epsg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
