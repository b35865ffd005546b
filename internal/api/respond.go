package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coastwatch/pkg/model"
	"coastwatch/pkg/predict"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, predict.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNetwork), errors.Is(err, model.ErrMalformedResponse):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
