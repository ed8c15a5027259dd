package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

const defaultReportLimit = 100

// ReportDependencies defines incident report operations.
type ReportDependencies interface {
	GenerateReport(ctx context.Context, caller model.Actor, req types.ReportRequest) (model.IncidentReport, error)
	Reports(ctx context.Context, caller model.Actor, limit int) ([]model.IncidentReport, error)
	Report(ctx context.Context, caller model.Actor, id string) (model.IncidentReport, error)
}

// ReportHandler handles /api/incident-reports.
type ReportHandler struct {
	deps ReportDependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleGenerate builds and stores a report.
func (h *ReportHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.ReportRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	report, err := h.deps.GenerateReport(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// HandleList lists reports.
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := limitParam(r, defaultReportLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.Reports(r.Context(), actor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet returns one report.
func (h *ReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := h.deps.Report(r.Context(), actor, chi.URLParam(r, "report_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
