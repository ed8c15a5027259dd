package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Defaults for manually triggered emergencies and drills.
const (
	manualAnomaly       = "Ventricular Fibrillation"
	manualHeartRate     = 180
	manualBloodPressure = "160/100"
	manualOxygen        = 88
	manualRespiratory   = 28
	unknownLocation     = "Unknown location"
	trainingField       = "Training Field"
	trainingFieldLat    = 37.7749
	trainingFieldLong   = -122.4194
)

// TriggerEmergency raises a manual cardiac emergency. Athletes always trigger
// for themselves; other roles must name the athlete.
func (s *Service) TriggerEmergency(ctx context.Context, caller model.Actor, req types.TriggerRequest) (model.EmergencyRecord, error) {
	if caller.ID == "" {
		return model.EmergencyRecord{}, policy.ErrUnauthorized
	}
	if err := auth.Validate(req); err != nil {
		return model.EmergencyRecord{}, err
	}
	subject := strings.TrimSpace(req.AthleteID)
	switch {
	case caller.Role == model.RoleAthlete:
		subject = caller.ID
	case subject == "":
		return model.EmergencyRecord{}, fmt.Errorf("%w: athlete_id is required", auth.ErrValidation)
	}

	loc := model.Location{Description: req.Location, Latitude: req.Latitude, Longitude: req.Longitude}
	if loc.Description == "" && !loc.HasCoordinates() {
		loc.Description = unknownLocation
	}
	initiator := caller
	rec := model.EmergencyRecord{
		ID:          uuid.NewString(),
		Kind:        model.KindCardiacAnomaly,
		SubjectID:   subject,
		SubjectName: s.displayName(ctx, subject, req.AthleteName),
		DetectedAt:  s.now(),
		Location:    loc,
		Vitals: &model.VitalSigns{
			HeartRate:        manualHeartRate,
			HeartRhythm:      "irregular",
			BloodPressure:    manualBloodPressure,
			OxygenSaturation: manualOxygen,
			RespiratoryRate:  manualRespiratory,
			AnomalyType:      manualAnomaly,
		},
		InitiatedBy: &initiator,
		Status:      model.StatusActive,
	}
	return s.raise(ctx, rec)
}

// raise records rec and hands it to the dispatcher.
func (s *Service) raise(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, error) {
	created, err := s.ledger.Create(ctx, rec)
	if err != nil {
		return model.EmergencyRecord{}, err
	}
	return s.announce(ctx, created)
}

// announce fans out a record already in the ledger.
func (s *Service) announce(ctx context.Context, created model.EmergencyRecord) (model.EmergencyRecord, error) {
	if err := s.dispatcher.Raise(ctx, created); err != nil {
		return model.EmergencyRecord{}, err
	}
	metrics.UpdateEmergenciesActive(s.ledger.Count(ctx))
	s.logger.Info(ctx, "emergency raised",
		logger.String("emergency_id", created.ID),
		logger.String("athlete_id", created.SubjectID),
		logger.String("kind", string(created.Kind)))
	return created, nil
}

// ActiveEmergencies lists active records by detection time, then id.
func (s *Service) ActiveEmergencies(ctx context.Context) []model.EmergencyRecord {
	return sortRecords(s.ledger.ListActive(ctx))
}

// Emergency returns one active record.
func (s *Service) Emergency(ctx context.Context, id string) (model.EmergencyRecord, error) {
	return s.ledger.Get(ctx, id)
}

// ResolveEmergency resolves an active record on behalf of a coach or referee.
func (s *Service) ResolveEmergency(ctx context.Context, caller model.Actor, id string) (model.EmergencyRecord, error) {
	if err := policy.RequireActor(caller, policy.EmergencyResolvers...); err != nil {
		return model.EmergencyRecord{}, err
	}
	rec, err := s.dispatcher.Resolve(ctx, id, caller)
	if err != nil {
		return model.EmergencyRecord{}, err
	}
	metrics.UpdateEmergenciesActive(s.ledger.Count(ctx))
	s.logger.Info(ctx, "emergency resolved", logger.String("emergency_id", id), logger.String("by", caller.ID))
	return rec, nil
}

// StartSimulation raises a drill. Only coaches run drills.
func (s *Service) StartSimulation(ctx context.Context, caller model.Actor, req types.SimulationRequest) (model.EmergencyRecord, error) {
	if err := policy.RequireActor(caller, policy.SimulationOperators...); err != nil {
		return model.EmergencyRecord{}, err
	}
	if err := auth.Validate(req); err != nil {
		return model.EmergencyRecord{}, err
	}
	lat, long := trainingFieldLat, trainingFieldLong
	if req.Latitude != nil && req.Longitude != nil {
		lat, long = *req.Latitude, *req.Longitude
	}
	loc := model.Coordinates(lat, long)
	loc.Description = lo.CoalesceOrEmpty(strings.TrimSpace(req.Location), trainingField)

	initiator := caller
	rec := model.EmergencyRecord{
		ID:          uuid.NewString(),
		Kind:        model.KindSimulation,
		SubjectID:   req.AthleteID,
		SubjectName: req.AthleteName,
		DetectedAt:  s.now(),
		Location:    loc,
		Vitals: &model.VitalSigns{
			HeartRate:   s.mock.CrisisHeartRate(),
			HeartRhythm: "irregular",
			AnomalyType: lo.CoalesceOrEmpty(strings.TrimSpace(req.AnomalyType), manualAnomaly),
		},
		InitiatedBy: &initiator,
		Status:      model.StatusActive,
	}
	return s.raise(ctx, rec)
}

// EndSimulation resolves a drill. Only the coach who started it may end it.
func (s *Service) EndSimulation(ctx context.Context, caller model.Actor, id string) (types.SimulationEnded, error) {
	if err := policy.RequireActor(caller, policy.SimulationOperators...); err != nil {
		return types.SimulationEnded{}, err
	}
	rec, err := s.ledger.Get(ctx, id)
	if err != nil {
		return types.SimulationEnded{}, err
	}
	if err := ownSimulation(caller, rec); err != nil {
		return types.SimulationEnded{}, err
	}
	resolved, err := s.ResolveEmergency(ctx, caller, id)
	if err != nil {
		return types.SimulationEnded{}, err
	}
	d := resolved.Duration(s.now())
	return types.SimulationEnded{
		Simulation:      resolved,
		DurationSeconds: math.Round(d.Seconds()*100) / 100,
	}, nil
}

// ActiveSimulations lists the caller's running drills.
func (s *Service) ActiveSimulations(ctx context.Context, caller model.Actor) ([]model.EmergencyRecord, error) {
	if err := policy.RequireActor(caller, policy.SimulationOperators...); err != nil {
		return nil, err
	}
	mine := lo.Filter(s.ledger.ListActive(ctx), func(rec model.EmergencyRecord, _ int) bool {
		return ownSimulation(caller, rec) == nil
	})
	return sortRecords(mine), nil
}

// Simulation returns one of the caller's drills, running or recently ended.
func (s *Service) Simulation(ctx context.Context, caller model.Actor, id string) (model.EmergencyRecord, error) {
	if err := policy.RequireActor(caller, policy.SimulationOperators...); err != nil {
		return model.EmergencyRecord{}, err
	}
	rec, err := s.ledger.Lookup(ctx, id)
	if err != nil {
		return model.EmergencyRecord{}, err
	}
	if err := ownSimulation(caller, rec); err != nil {
		return model.EmergencyRecord{}, err
	}
	return rec, nil
}

// ownSimulation hides real emergencies behind ErrNotFound and rejects drills
// started by somebody else.
func ownSimulation(caller model.Actor, rec model.EmergencyRecord) error {
	if !rec.IsSimulation() {
		return fmt.Errorf("%w: simulation %s", repository.ErrNotFound, rec.ID)
	}
	if rec.InitiatedBy == nil {
		return policy.ErrForbidden
	}
	return policy.RequireSelf(caller, rec.InitiatedBy.ID)
}

// IngestReading evaluates one sensor reading and raises an emergency when it
// is anomalous and the athlete has none active. Deduplication happens before.
func (s *Service) IngestReading(ctx context.Context, caller model.Actor, r anomaly.Reading) (types.IngestResult, error) {
	if caller.ID == "" {
		return types.IngestResult{}, policy.ErrUnauthorized
	}
	r.AthleteID = strings.TrimSpace(r.AthleteID)
	switch {
	case caller.Role == model.RoleAthlete && r.AthleteID == "":
		r.AthleteID = caller.ID
	case caller.Role == model.RoleAthlete && r.AthleteID != caller.ID:
		return types.IngestResult{}, fmt.Errorf("%w: athletes submit their own readings", policy.ErrForbidden)
	case r.AthleteID == "":
		return types.IngestResult{}, fmt.Errorf("%w: athlete_id is required", auth.ErrValidation)
	}

	a, err := s.detector.Evaluate(ctx, r)
	if err != nil {
		metrics.RecordReadingIngested("invalid")
		if errors.Is(err, anomaly.ErrInvalidReading) {
			return types.IngestResult{}, fmt.Errorf("%w: %w", auth.ErrValidation, err)
		}
		return types.IngestResult{}, err
	}
	res := types.IngestResult{ReadingID: r.ID, Assessment: a}
	if !a.Anomalous {
		metrics.RecordReadingIngested("normal")
		return res, nil
	}

	loc := model.Location{Description: unknownLocation}
	if r.Latitude != nil && r.Longitude != nil {
		loc = model.Coordinates(*r.Latitude, *r.Longitude)
	}
	vitals := anomaly.Vitals(r, a)
	rec, created, err := s.ledger.CreateUnlessActive(ctx, model.EmergencyRecord{
		ID:          uuid.NewString(),
		Kind:        model.KindCardiacAnomaly,
		SubjectID:   r.AthleteID,
		SubjectName: s.displayName(ctx, r.AthleteID, ""),
		DetectedAt:  s.now(),
		Location:    loc,
		Vitals:      &vitals,
		Status:      model.StatusActive,
	})
	if err != nil {
		return types.IngestResult{}, err
	}
	if !created {
		metrics.RecordReadingIngested("suppressed")
		res.EmergencyID = rec.ID
		return res, nil
	}
	if rec, err = s.announce(ctx, rec); err != nil {
		return types.IngestResult{}, err
	}
	metrics.RecordReadingIngested("anomalous")
	res.EmergencyID = rec.ID
	return res, nil
}

func sortRecords(recs []model.EmergencyRecord) []model.EmergencyRecord {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].DetectedAt.Equal(recs[j].DetectedAt) {
			return recs[i].DetectedAt.Before(recs[j].DetectedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs
}
