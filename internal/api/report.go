package api

import (
	"net/http"

	"coastwatch/pkg/report"
)

// ReportHandler exposes the session report.
type ReportHandler struct {
	report *report.Accumulator
}

// NewReportHandler creates the handler.
func NewReportHandler(rep *report.Accumulator) *ReportHandler {
	return &ReportHandler{report: rep}
}

// HandleGet returns the full session report.
func (h *ReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.report.Snapshot())
}
