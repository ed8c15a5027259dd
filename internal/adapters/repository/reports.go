package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/stomp/internal/domain/model"
)

// SaveReport stores r, assigning an id if it has none.
func (s *Store) SaveReport(ctx context.Context, r model.IncidentReport) (model.IncidentReport, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return model.IncidentReport{}, fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO incident_reports (id, emergency_id, generated_by, generated_at, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.EmergencyID, r.GeneratedBy.ID, utc(r.GeneratedAt), string(payload))
	if err != nil {
		if isUniqueViolation(err) {
			return model.IncidentReport{}, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		return model.IncidentReport{}, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// Report returns one report.
func (s *Store) Report(ctx context.Context, id string) (model.IncidentReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM incident_reports WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IncidentReport{}, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	if err != nil {
		return model.IncidentReport{}, fmt.Errorf("query report: %w", err)
	}
	return decodeReport(payload)
}

// Reports lists reports newest first. limit <= 0 means no limit.
func (s *Store) Reports(ctx context.Context, limit int) ([]model.IncidentReport, error) {
	query := `SELECT payload FROM incident_reports ORDER BY generated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.IncidentReport{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeReport(payload string) (model.IncidentReport, error) {
	var r model.IncidentReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return model.IncidentReport{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
