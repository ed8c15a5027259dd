package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

const (
	priorityNormal = "normal"
	priorityHigh   = "high"
)

// CreateNotification stores an in-app notification for roles and/or users.
func (s *Service) CreateNotification(ctx context.Context, caller model.Actor, req types.NotificationRequest) (model.Notification, error) {
	if err := policy.RequireActor(caller, policy.NotificationAuthors...); err != nil {
		return model.Notification{}, err
	}
	if err := auth.Validate(req); err != nil {
		return model.Notification{}, err
	}
	if len(req.TargetRoles) == 0 && len(req.TargetUserIDs) == 0 {
		return model.Notification{}, fmt.Errorf("%w: target_roles or target_user_ids is required", auth.ErrValidation)
	}
	return s.store.CreateNotification(ctx, model.Notification{
		Title:         req.Title,
		Message:       req.Message,
		Type:          lo.CoalesceOrEmpty(req.Type, model.NotificationGeneral),
		Priority:      lo.CoalesceOrEmpty(req.Priority, priorityNormal),
		TargetRoles:   req.TargetRoles,
		TargetUserIDs: req.TargetUserIDs,
		CreatedBy:     caller.ID,
	})
}

// Notifications lists the caller's notifications, hiding the kinds their
// preferences switch off.
func (s *Service) Notifications(ctx context.Context, caller model.Actor, unreadOnly bool, limit int) ([]model.Notification, error) {
	if caller.ID == "" {
		return nil, policy.ErrUnauthorized
	}
	prefs, err := s.store.Preferences(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.NotificationsFor(ctx, caller, unreadOnly, 0)
	if err != nil {
		return nil, err
	}
	out := lo.Filter(all, func(n model.Notification, _ int) bool { return wanted(prefs, n.Type) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func wanted(p model.Preferences, t model.NotificationType) bool {
	switch t {
	case model.NotificationEmergency:
		return p.EmergencyAlerts
	case model.NotificationReminder:
		return p.TrainingReminders
	case model.NotificationProtocolUpdate:
		return p.ProtocolUpdates
	default:
		return true
	}
}

// MarkNotificationRead marks one notification read for the caller.
func (s *Service) MarkNotificationRead(ctx context.Context, caller model.Actor, id string) error {
	if caller.ID == "" {
		return policy.ErrUnauthorized
	}
	return s.store.MarkRead(ctx, caller, id)
}

// MarkAllNotificationsRead marks everything addressed to the caller read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, caller model.Actor) (int, error) {
	if caller.ID == "" {
		return 0, policy.ErrUnauthorized
	}
	return s.store.MarkAllRead(ctx, caller)
}

// NotificationPreferences returns the caller's settings.
func (s *Service) NotificationPreferences(ctx context.Context, caller model.Actor) (model.Preferences, error) {
	if caller.ID == "" {
		return model.Preferences{}, policy.ErrUnauthorized
	}
	return s.store.Preferences(ctx, caller.ID)
}

// UpdateNotificationPreferences replaces the caller's settings.
func (s *Service) UpdateNotificationPreferences(ctx context.Context, caller model.Actor, p model.Preferences) (model.Preferences, error) {
	if caller.ID == "" {
		return model.Preferences{}, policy.ErrUnauthorized
	}
	if err := s.store.SavePreferences(ctx, caller.ID, p); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}

// GenerateMonthlyReminders posts this month's device and training reminders.
func (s *Service) GenerateMonthlyReminders(ctx context.Context, caller model.Actor) ([]model.Notification, error) {
	if err := policy.RequireActor(caller, policy.ReminderAuthors...); err != nil {
		return nil, err
	}
	month := s.now().Format("January 2006")
	drafts := []model.Notification{
		{
			Title:       "Monthly CPR device check: " + month,
			Message:     "Check that your wearable CPR device is charged, fitted and running the latest firmware.",
			TargetRoles: []model.Role{model.RoleAthlete},
		},
		{
			Title:       "Monthly emergency response drill: " + month,
			Message:     "Schedule this month's emergency response drill and review the action plan with your team.",
			TargetRoles: []model.Role{model.RoleCoach, model.RoleReferee, model.RoleTeammate},
		},
	}
	out := make([]model.Notification, 0, len(drafts))
	for _, n := range drafts {
		n.Type = model.NotificationReminder
		n.Priority = priorityNormal
		n.CreatedBy = caller.ID
		saved, err := s.store.CreateNotification(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	s.logger.Info(ctx, "monthly reminders generated", logger.String("month", month), logger.Int("count", len(out)))
	return out, nil
}

// SendProtocolUpdate announces a safety protocol change to every role.
func (s *Service) SendProtocolUpdate(ctx context.Context, caller model.Actor, req types.ProtocolUpdateRequest) (model.Notification, error) {
	if err := policy.RequireActor(caller, policy.ReminderAuthors...); err != nil {
		return model.Notification{}, err
	}
	if err := auth.Validate(req); err != nil {
		return model.Notification{}, err
	}
	return s.store.CreateNotification(ctx, model.Notification{
		Title:       req.Title,
		Message:     req.Message,
		Type:        model.NotificationProtocolUpdate,
		Priority:    priorityHigh,
		TargetRoles: model.Roles(),
		CreatedBy:   caller.ID,
	})
}

// RegisterDevice stores a push token for the caller.
func (s *Service) RegisterDevice(ctx context.Context, caller model.Actor, req types.DeviceRequest) (model.Device, error) {
	if caller.ID == "" {
		return model.Device{}, policy.ErrUnauthorized
	}
	if err := auth.Validate(req); err != nil {
		return model.Device{}, err
	}
	return s.store.SaveDevice(ctx, model.Device{UserID: caller.ID, Token: req.Token, Platform: req.Platform})
}
