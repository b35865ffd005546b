package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"coastwatch/pkg/model"
	"coastwatch/pkg/predict"
	"coastwatch/pkg/registry"
)

// 20 MB is generous for a coastline GeoJSON or CSV.
const maxUploadBytes = 20 << 20

// PredictHandler exposes the prediction flows.
type PredictHandler struct {
	coord *predict.Coordinator
}

// NewPredictHandler creates the handler.
func NewPredictHandler(coord *predict.Coordinator) *PredictHandler {
	return &PredictHandler{coord: coord}
}

func layerResponse(entry model.LayerEntry, status registry.PersistStatus) map[string]any {
	return map[string]any{
		"id":        entry.ID,
		"name":      entry.Name,
		"kind":      entry.Kind,
		"features":  len(entry.Features),
		"persisted": status,
	}
}

// HandlePredictLine runs a shoreline prediction for a year.
func (h *PredictHandler) HandlePredictLine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Year int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	entry, status, err := h.coord.PredictLine(r.Context(), body.Year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layerResponse(entry, status))
}

// HandlePredictPoint runs a single-point prediction.
func (h *PredictHandler) HandlePredictPoint(w http.ResponseWriter, r *http.Request) {
	var in predict.PointInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	entry, status, err := h.coord.PredictPoint(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layerResponse(entry, status))
}

// HandleUpload accepts a user layer file (multipart field "file").
func (h *PredictHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: no file uploaded", model.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	entry, status, err := h.coord.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layerResponse(entry, status))
}

// HandleStatus reports which flows have a request in flight.
func (h *PredictHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Status())
}
