package repository

import (
	"context"
	"fmt"

	"github.com/okian/stomp/internal/domain/model"
)

// SaveDevice registers or re-assigns a push token.
func (s *Store) SaveDevice(ctx context.Context, d model.Device) (model.Device, error) {
	d.CreatedAt = utc(s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO devices (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform`,
		d.Token, d.UserID, d.Platform, d.CreatedAt)
	if err != nil {
		return model.Device{}, fmt.Errorf("save device: %w", err)
	}
	return d, nil
}

// DeviceTokens returns the push tokens registered by any of userIDs.
func (s *Store) DeviceTokens(ctx context.Context, userIDs ...string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	// Per-user lookups keep the query identical across drivers.
	var out []string
	for _, id := range userIDs {
		rows, err := s.db.QueryContext(ctx, `SELECT token FROM devices WHERE user_id = $1 ORDER BY created_at`, id)
		if err != nil {
			return nil, fmt.Errorf("query devices: %w", err)
		}
		for rows.Next() {
			var token string
			if err := rows.Scan(&token); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan device: %w", err)
			}
			out = append(out, token)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
