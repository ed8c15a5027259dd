package service

import (
	"context"

	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/incident"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

// GenerateReport builds and stores an incident report from an active or
// recently resolved emergency.
func (s *Service) GenerateReport(ctx context.Context, caller model.Actor, req types.ReportRequest) (model.IncidentReport, error) {
	if err := policy.RequireActor(caller, policy.ReportViewers...); err != nil {
		return model.IncidentReport{}, err
	}
	if err := auth.Validate(req); err != nil {
		return model.IncidentReport{}, err
	}
	rec, err := s.ledger.Lookup(ctx, req.EmergencyID)
	if err != nil {
		return model.IncidentReport{}, err
	}
	report, err := s.store.SaveReport(ctx, incident.Build(rec, caller, req.Notes, s.now()))
	if err != nil {
		return model.IncidentReport{}, err
	}
	s.logger.Info(ctx, "incident report generated",
		logger.String("report_id", report.ID),
		logger.String("emergency_id", report.EmergencyID))
	return report, nil
}

// Reports lists stored reports, newest first.
func (s *Service) Reports(ctx context.Context, caller model.Actor, limit int) ([]model.IncidentReport, error) {
	if err := policy.RequireActor(caller, policy.ReportViewers...); err != nil {
		return nil, err
	}
	return s.store.Reports(ctx, limit)
}

// Report returns one stored report.
func (s *Service) Report(ctx context.Context, caller model.Actor, id string) (model.IncidentReport, error) {
	if err := policy.RequireActor(caller, policy.ReportViewers...); err != nil {
		return model.IncidentReport{}, err
	}
	return s.store.Report(ctx, id)
}
