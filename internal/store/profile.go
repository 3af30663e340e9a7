package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, user_id, name, target_entity_description, keywords, industry_tags,
	source_config, alert_config, status, last_run_at, created_at, updated_at`

type profileStore struct {
	q db.Querier
}

func newProfileStore(q db.Querier) ProfileStore {
	return &profileStore{q: q}
}

func (s *profileStore) GetByID(ctx context.Context, id int64) (*model.MonitoringProfile, error) {
	row := s.q.QueryRow(ctx, `SELECT `+profileColumns+` FROM monitoring_profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (s *profileStore) ListByUser(ctx context.Context, userID int64) ([]model.MonitoringProfile, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+profileColumns+` FROM monitoring_profiles
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectProfiles(rows)
}

func (s *profileStore) Create(ctx context.Context, profile *model.MonitoringProfile) error {
	sourceCfg, alertCfg, err := marshalProfileConfigs(profile)
	if err != nil {
		return err
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO monitoring_profiles
			(id, user_id, name, target_entity_description, keywords, industry_tags,
			 source_config, alert_config, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+profileColumns,
		profile.ID, profile.UserID, profile.Name, profile.TargetEntityDescription,
		nonNil(profile.Keywords), nonNil(profile.IndustryTags), sourceCfg, alertCfg, string(profile.Status),
	)
	saved, err := scanProfile(row)
	if err != nil {
		return err
	}
	*profile = *saved
	return nil
}

func (s *profileStore) Update(ctx context.Context, profile *model.MonitoringProfile) error {
	sourceCfg, alertCfg, err := marshalProfileConfigs(profile)
	if err != nil {
		return err
	}

	row := s.q.QueryRow(ctx, `
		UPDATE monitoring_profiles
		SET name = $2, target_entity_description = $3, keywords = $4, industry_tags = $5,
		    source_config = $6, alert_config = $7, status = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		profile.ID, profile.Name, profile.TargetEntityDescription,
		nonNil(profile.Keywords), nonNil(profile.IndustryTags), sourceCfg, alertCfg, string(profile.Status),
	)
	saved, err := scanProfile(row)
	if err != nil {
		return err
	}
	*profile = *saved
	return nil
}

func (s *profileStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM monitoring_profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *profileStore) ClaimDue(ctx context.Context, interval, lease time.Duration, limit int) ([]model.MonitoringProfile, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE monitoring_profiles
		SET claimed_until = now() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM monitoring_profiles
			WHERE status = 'active'
			  AND (last_run_at IS NULL OR last_run_at <= now() - make_interval(secs => $1))
			  AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY last_run_at ASC NULLS FIRST
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+profileColumns,
		interval.Seconds(), lease.Seconds(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming due profiles: %w", err)
	}
	profiles, err := collectProfiles(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order.
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i].LastRunAt, profiles[j].LastRunAt
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	return profiles, nil
}

func (s *profileStore) MarkRun(ctx context.Context, id int64, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE monitoring_profiles
		SET last_run_at = GREATEST(COALESCE(last_run_at, $2), $2),
		    claimed_until = NULL,
		    updated_at = now()
		WHERE id = $1`, id, at)
	return err
}

func (s *profileStore) ReleaseClaim(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `UPDATE monitoring_profiles SET claimed_until = NULL WHERE id = $1`, id)
	return err
}

func marshalProfileConfigs(p *model.MonitoringProfile) ([]byte, []byte, error) {
	sourceCfg, err := json.Marshal(p.SourceConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding source config: %w", err)
	}
	alertCfg, err := json.Marshal(p.AlertConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding alert config: %w", err)
	}
	return sourceCfg, alertCfg, nil
}

func collectProfiles(rows pgx.Rows) ([]model.MonitoringProfile, error) {
	defer rows.Close()

	var profiles []model.MonitoringProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (*model.MonitoringProfile, error) {
	var (
		p                   model.MonitoringProfile
		status              string
		sourceCfg, alertCfg []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.TargetEntityDescription, &p.Keywords, &p.IndustryTags,
		&sourceCfg, &alertCfg, &status, &p.LastRunAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	p.Status = model.ProfileStatus(status)

	if len(sourceCfg) > 0 {
		if err := json.Unmarshal(sourceCfg, &p.SourceConfig); err != nil {
			return nil, fmt.Errorf("decoding source config: %w", err)
		}
	}
	if len(alertCfg) > 0 {
		if err := json.Unmarshal(alertCfg, &p.AlertConfig); err != nil {
			return nil, fmt.Errorf("decoding alert config: %w", err)
		}
	}
	return &p, nil
}
