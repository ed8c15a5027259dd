package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/dedupe"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// VitalsDependencies defines the interface for sensor ingest dependencies.
type VitalsDependencies interface {
	dedupe.Deduper
	IngestReading(ctx context.Context, caller model.Actor, r anomaly.Reading) (types.IngestResult, error)
}

// VitalsHandler handles wearable readings.
type VitalsHandler struct {
	deps VitalsDependencies
}

// NewVitalsHandler creates a new vitals handler.
func NewVitalsHandler(deps VitalsDependencies) *VitalsHandler {
	return &VitalsHandler{deps: deps}
}

// HandlePostReading handles POST /api/vitals requests.
func (h *VitalsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var reading anomaly.Reading
	if err := decode(w, r, &reading); err != nil {
		writeError(w, err)
		return
	}
	reading.ID = strings.TrimSpace(reading.ID)
	if reading.ID == "" {
		writeError(w, fmt.Errorf("%w: missing reading_id", ErrBadRequest))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), reading.ID) {
		writeJSON(w, http.StatusOK, types.IngestResult{ReadingID: reading.ID, Duplicate: true})
		return
	}

	res, err := h.deps.IngestReading(r.Context(), actor, reading)
	if err != nil {
		// Rollback the "seen" status so the device can retry
		h.deps.Unrecord(r.Context(), reading.ID)
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.EmergencyID != "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}
