// Package notify sends emergency alerts over channels outside the realtime
// socket: email, mobile push and the in-app inbox. Every channel is best
// effort.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Channel names used in metrics.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInbox = "inbox"
)

// Mailer sends an email.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Pusher sends a mobile push notification.
type Pusher interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error)
}

// Directory resolves who should hear about an emergency.
type Directory interface {
	UsersByRoles(ctx context.Context, roles ...model.Role) ([]model.User, error)
	DeviceTokens(ctx context.Context, userIDs ...string) ([]string, error)
	Preferences(ctx context.Context, userID string) (model.Preferences, error)
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
}

// Recipients of out-of-band emergency alerts.
var Recipients = []model.Role{model.RoleCoach, model.RoleReferee}

// Notifier fans an emergency out to the configured side channels.
type Notifier struct {
	dir    Directory
	mailer Mailer
	pusher Pusher
	logger logger.Logger
}

// New builds a notifier. Channels without a sender are skipped.
func New(dir Directory, opts ...Option) *Notifier {
	n := &Notifier{dir: dir}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logger.Get().Named("notify")
	}
	return n
}

// EmergencyRaised notifies coaches and referees who have emergency alerts
// enabled. Errors from individual channels are joined.
func (n *Notifier) EmergencyRaised(ctx context.Context, rec model.EmergencyRecord) error {
	users, err := n.dir.UsersByRoles(ctx, Recipients...)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	var emails, pushIDs []string
	for _, u := range users {
		prefs, err := n.dir.Preferences(ctx, u.ID)
		if err != nil {
			n.logger.Warn(ctx, "preferences unavailable, using defaults", logger.String("user_id", u.ID), logger.Error(err))
			prefs = model.DefaultPreferences()
		}
		if !prefs.EmergencyAlerts {
			continue
		}
		if prefs.Email && u.Email != "" {
			emails = append(emails, u.Email)
		}
		if prefs.Push {
			pushIDs = append(pushIDs, u.ID)
		}
	}

	title, body := Compose(rec)
	var errs []error
	errs = append(errs, n.inbox(ctx, rec, title, body))
	errs = append(errs, n.email(ctx, lo.Uniq(emails), title, body))
	errs = append(errs, n.push(ctx, rec, pushIDs, title, body))
	return errors.Join(errs...)
}

func (n *Notifier) inbox(ctx context.Context, rec model.EmergencyRecord, title, body string) error {
	_, err := n.dir.CreateNotification(ctx, model.Notification{
		Title:         title,
		Message:       body,
		Type:          model.NotificationEmergency,
		Priority:      "urgent",
		TargetRoles:   Recipients,
		TargetUserIDs: []string{},
		CreatedBy:     "system",
	})
	return n.outcome(ctx, ChannelInbox, rec.ID, err)
}

func (n *Notifier) email(ctx context.Context, to []string, title, body string) error {
	if n.mailer == nil || len(to) == 0 {
		metrics.RecordSideChannel(ChannelEmail, "skipped")
		return nil
	}
	return n.outcome(ctx, ChannelEmail, "", n.mailer.Send(ctx, to, title, "<p>"+body+"</p>"))
}

func (n *Notifier) push(ctx context.Context, rec model.EmergencyRecord, userIDs []string, title, body string) error {
	if n.pusher == nil || len(userIDs) == 0 {
		metrics.RecordSideChannel(ChannelPush, "skipped")
		return nil
	}
	tokens, err := n.dir.DeviceTokens(ctx, userIDs...)
	if err != nil {
		return n.outcome(ctx, ChannelPush, rec.ID, err)
	}
	if len(tokens) == 0 {
		metrics.RecordSideChannel(ChannelPush, "skipped")
		return nil
	}
	res, err := n.pusher.Send(ctx, tokens, title, body, map[string]string{
		"emergency_id": rec.ID,
		"athlete_id":   rec.SubjectID,
		"type":         "emergency_alert",
	})
	if err == nil && res.Failure > 0 {
		n.logger.Warn(ctx, "push partially failed",
			logger.Int("success", res.Success), logger.Int("failure", res.Failure))
	}
	return n.outcome(ctx, ChannelPush, rec.ID, err)
}

func (n *Notifier) outcome(ctx context.Context, channel, emergencyID string, err error) error {
	if err != nil {
		metrics.RecordSideChannel(channel, "failed")
		n.logger.Warn(ctx, "side channel failed",
			logger.String("channel", channel),
			logger.String("emergency_id", emergencyID),
			logger.Error(err))
		return fmt.Errorf("%s: %w", channel, err)
	}
	metrics.RecordSideChannel(channel, "sent")
	return nil
}

// Compose renders the title and body used by every channel.
func Compose(rec model.EmergencyRecord) (string, string) {
	name := rec.SubjectName
	if name == "" {
		name = rec.SubjectID
	}
	title := "Emergency: " + name
	if rec.IsSimulation() {
		title = "[SIMULATION] " + title
	}
	body := fmt.Sprintf("Athlete %s needs immediate assistance", name)
	if rec.Location.Description != "" {
		body += " at " + rec.Location.Description
	}
	if rec.Vitals != nil && rec.Vitals.AnomalyType != "" {
		body += fmt.Sprintf(" (%s, heart rate %d)", rec.Vitals.AnomalyType, rec.Vitals.HeartRate)
	}
	return title, body + "."
}
