package service

import (
	"context"
	"fmt"

	"github.com/okian/stomp/internal/domain/mockdata"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
)

// AthleteDashboard returns the caller's vitals, CPR device and contacts.
// Vitals and the device are mock figures until wearables report in.
func (s *Service) AthleteDashboard(ctx context.Context, caller model.Actor) (types.AthleteDashboard, error) {
	if err := policy.RequireActor(caller, model.RoleAthlete); err != nil {
		return types.AthleteDashboard{}, err
	}
	u, err := s.store.UserByID(ctx, caller.ID)
	if err != nil {
		return types.AthleteDashboard{}, err
	}
	contacts, err := s.store.Contacts(ctx, caller.ID)
	if err != nil {
		return types.AthleteDashboard{}, err
	}
	return types.AthleteDashboard{
		Athlete:   u,
		Vitals:    s.mock.Vitals(),
		CPRDevice: s.mock.CPR(),
		Contacts:  contacts,
	}, nil
}

// CoachDashboard returns a team overview plus the live emergencies.
func (s *Service) CoachDashboard(ctx context.Context, caller model.Actor) (types.CoachDashboard, error) {
	if err := policy.RequireActor(caller, model.RoleCoach); err != nil {
		return types.CoachDashboard{}, err
	}
	overview, athletes := s.mock.Team(defaultTeamSize)
	return types.CoachDashboard{
		Overview:          overview,
		Athletes:          athletes,
		ActiveEmergencies: s.ActiveEmergencies(ctx),
	}, nil
}

// CoachAthlete returns the detail view of one athlete.
func (s *Service) CoachAthlete(_ context.Context, caller model.Actor, athleteID string) (mockdata.AthleteDetail, error) {
	if err := policy.RequireActor(caller, model.RoleCoach); err != nil {
		return mockdata.AthleteDetail{}, err
	}
	return s.mock.Athlete(athleteID), nil
}

// ResponderDashboard serves the teammate and referee views. The caller must
// hold the role the dashboard is for.
func (s *Service) ResponderDashboard(ctx context.Context, caller model.Actor, role model.Role) (types.ResponderDashboard, error) {
	if role != model.RoleTeammate && role != model.RoleReferee {
		return types.ResponderDashboard{}, fmt.Errorf("%w: no %s dashboard", policy.ErrForbidden, role)
	}
	if err := policy.RequireActor(caller, role); err != nil {
		return types.ResponderDashboard{}, err
	}
	_, athletes := s.mock.Team(defaultTeamSize)
	return types.ResponderDashboard{
		Role:              role,
		Athletes:          athletes,
		ActiveEmergencies: s.ActiveEmergencies(ctx),
		GeneratedAt:       s.now(),
	}, nil
}
