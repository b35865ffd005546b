package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coastwatch/pkg/version"
)

// Handlers bundles the endpoint handlers the server wires up.
type Handlers struct {
	Layers   *LayersHandler
	Predict  *PredictHandler
	Assess   *AssessHandler
	Report   *ReportHandler
	Stats    *StatsHandler
	Events   *EventsHandler
	Settings *SettingsHandler
}

// NewServer creates and configures the HTTP server. staticDir holds the
// map UI; shutdown is invoked by the shutdown endpoint.
func NewServer(addr, staticDir string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Layer Endpoints
	mux.HandleFunc("GET /api/layers", h.Layers.HandleList)
	mux.HandleFunc("GET /api/layers/{id}", h.Layers.HandleGet)
	mux.HandleFunc("POST /api/layers/{id}/visibility", h.Layers.HandleVisibility)
	mux.HandleFunc("DELETE /api/layers/{id}", h.Layers.HandleRemove)
	mux.HandleFunc("POST /api/layers/clear", h.Layers.HandleClear)
	mux.Handle("GET /api/layers/events", h.Events)

	// 4. Prediction Endpoints
	mux.HandleFunc("POST /api/predict", h.Predict.HandlePredictLine)
	mux.HandleFunc("POST /api/predict/point", h.Predict.HandlePredictPoint)
	mux.HandleFunc("POST /api/upload", h.Predict.HandleUpload)
	mux.HandleFunc("GET /api/predict/status", h.Predict.HandleStatus)

	// 5. Assessment Endpoints
	mux.HandleFunc("POST /api/assess/buffer", h.Assess.HandleBuffer)
	mux.HandleFunc("POST /api/assess/risk", h.Assess.HandleRisk)

	// 6. Report Endpoint
	mux.HandleFunc("GET /api/report", h.Report.HandleGet)

	// 7. Settings Endpoints
	mux.HandleFunc("GET /api/settings", h.Settings.HandleGet)
	mux.HandleFunc("POST /api/settings", h.Settings.HandleUpdate)

	// 8. Stats Endpoint
	mux.Handle("GET /api/stats", h.Stats)

	// 9. Logs Endpoint
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 10. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// 11. Static Frontend Serving (SPA)
	if staticDir != "" {
		spaFS := &spaFileSystem{root: http.Dir(staticDir)}
		mux.Handle("/", http.FileServer(spaFS))
	}

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // predictions can take a while
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
