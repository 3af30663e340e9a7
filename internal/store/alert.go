package store

import (
	"context"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
)

const alertColumns = `id, profile_id, insight_id, severity, title, description, status, user_notes,
	created_at, updated_at`

type alertStore struct {
	q db.Querier
}

func newAlertStore(q db.Querier) AlertStore {
	return &alertStore{q: q}
}

func (s *alertStore) Create(ctx context.Context, alert *model.Alert) error {
	if alert.Status == "" {
		alert.Status = model.AlertStatusNew
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO alerts (id, profile_id, insight_id, severity, title, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+alertColumns,
		alert.ID, alert.ProfileID, alert.InsightID, string(alert.Severity), alert.Title,
		alert.Description, string(alert.Status),
	)
	saved, err := scanAlert(row)
	if err != nil {
		return err
	}
	*alert = *saved
	return nil
}

func (s *alertStore) GetByID(ctx context.Context, id int64) (*model.Alert, error) {
	row := s.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	return scanAlert(row)
}

func (s *alertStore) ListByProfile(ctx context.Context, profileID int64, filter AlertFilter) ([]model.Alert, error) {
	var status, severity *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	if filter.Severity != nil {
		v := string(*filter.Severity)
		severity = &v
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE profile_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR severity = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		profileID, status, severity, limitOrDefault(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

func (s *alertStore) UpdateStatus(ctx context.Context, id int64, status model.AlertStatus, notes *string) (*model.Alert, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE alerts
		SET status = $2, user_notes = COALESCE($3, user_notes), updated_at = now()
		WHERE id = $1
		RETURNING `+alertColumns,
		id, string(status), notes,
	)
	return scanAlert(row)
}

func (s *alertStore) CountNewBySeverity(ctx context.Context, profileID int64) (map[model.Severity]int, error) {
	rows, err := s.q.Query(ctx, `
		SELECT severity, count(*) FROM alerts
		WHERE profile_id = $1 AND status = 'new'
		GROUP BY severity`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Severity]int, len(model.Severities))
	for _, sev := range model.Severities {
		counts[sev] = 0
	}
	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[model.Severity(severity)] = count
	}
	return counts, rows.Err()
}

func scanAlert(row pgx.Row) (*model.Alert, error) {
	var (
		a                model.Alert
		severity, status string
	)
	err := row.Scan(&a.ID, &a.ProfileID, &a.InsightID, &severity, &a.Title, &a.Description, &status,
		&a.UserNotes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	a.Severity = model.Severity(severity)
	a.Status = model.AlertStatus(status)
	return &a, nil
}
