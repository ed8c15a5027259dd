package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/stomp/internal/domain/model"
)

// CreateNotification stores n with a fresh id and creation time.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = utc(s.now())
	n.TargetRoles = lo.Uniq(n.TargetRoles)
	n.TargetUserIDs = lo.Uniq(n.TargetUserIDs)
	roles, err := json.Marshal(lo.Map(n.TargetRoles, func(r model.Role, _ int) string { return string(r) }))
	if err != nil {
		return model.Notification{}, fmt.Errorf("encode target roles: %w", err)
	}
	users, err := json.Marshal(n.TargetUserIDs)
	if err != nil {
		return model.Notification{}, fmt.Errorf("encode target users: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO notifications
		(id, title, message, type, priority, target_roles, target_user_ids, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.Title, n.Message, string(n.Type), n.Priority, string(roles), string(users), n.CreatedBy, n.CreatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// NotificationsFor lists notifications addressed to a, newest first, with the
// read flag set from a's perspective. limit <= 0 means no limit.
func (s *Store) NotificationsFor(ctx context.Context, a model.Actor, unreadOnly bool, limit int) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT n.id, n.title, n.message, n.type, n.priority,
			n.target_roles, n.target_user_ids, n.created_by, n.created_at, r.user_id IS NOT NULL
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		ORDER BY n.created_at DESC, n.id`, a.ID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		if !n.TargetsUser(a) || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

// MarkRead marks one notification read for a. Notifications not addressed to
// a are ErrNotFound.
func (s *Store) MarkRead(ctx context.Context, a model.Actor, id string) error {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, message, type, priority,
			target_roles, target_user_ids, created_by, created_at, FALSE
		FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		return err
	}
	if !n.TargetsUser(a) {
		return fmt.Errorf("%w: notification", ErrNotFound)
	}
	return s.markRead(ctx, a.ID, []string{id})
}

// MarkAllRead marks every unread notification addressed to a and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, a model.Actor) (int, error) {
	unread, err := s.NotificationsFor(ctx, a, true, 0)
	if err != nil {
		return 0, err
	}
	ids := lo.Map(unread, func(n model.Notification, _ int) string { return n.ID })
	if err := s.markRead(ctx, a.ID, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Store) markRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	at := utc(s.now())
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO notification_reads (notification_id, user_id, read_at)
			VALUES ($1, $2, $3) ON CONFLICT (notification_id, user_id) DO NOTHING`, id, userID, at); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}
	return tx.Commit()
}

// Preferences returns the user's settings, or the defaults if none are saved.
func (s *Store) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	var p model.Preferences
	err := s.db.QueryRowContext(ctx, `SELECT emergency_alerts, training_reminders, protocol_updates,
			email_notifications, push_notifications
		FROM notification_preferences WHERE user_id = $1`, userID).
		Scan(&p.EmergencyAlerts, &p.TrainingReminders, &p.ProtocolUpdates, &p.Email, &p.Push)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPreferences(), nil
	}
	if err != nil {
		return model.Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	return p, nil
}

// SavePreferences upserts the user's settings.
func (s *Store) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO notification_preferences
			(user_id, emergency_alerts, training_reminders, protocol_updates, email_notifications, push_notifications)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			emergency_alerts = excluded.emergency_alerts,
			training_reminders = excluded.training_reminders,
			protocol_updates = excluded.protocol_updates,
			email_notifications = excluded.email_notifications,
			push_notifications = excluded.push_notifications`,
		userID, p.EmergencyAlerts, p.TrainingReminders, p.ProtocolUpdates, p.Email, p.Push)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func scanNotification(row scanner) (model.Notification, error) {
	var (
		n            model.Notification
		kind         string
		roles, users string
		createdAt    time.Time
	)
	err := row.Scan(&n.ID, &n.Title, &n.Message, &kind, &n.Priority, &roles, &users, &n.CreatedBy, &createdAt, &n.Read)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Notification{}, fmt.Errorf("%w: notification", ErrNotFound)
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	n.Type = model.NotificationType(kind)
	n.CreatedAt = createdAt
	var roleNames []string
	if err := json.Unmarshal([]byte(roles), &roleNames); err != nil {
		return model.Notification{}, fmt.Errorf("decode target roles: %w", err)
	}
	n.TargetRoles = lo.Map(roleNames, func(r string, _ int) model.Role { return model.Role(r) })
	if err := json.Unmarshal([]byte(users), &n.TargetUserIDs); err != nil {
		return model.Notification{}, fmt.Errorf("decode target users: %w", err)
	}
	if n.TargetUserIDs == nil {
		n.TargetUserIDs = []string{}
	}
	return n, nil
}
