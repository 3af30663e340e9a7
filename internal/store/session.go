package store

import (
	"context"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
)

type sessionStore struct {
	q db.Querier
}

func newSessionStore(q db.Querier) SessionStore {
	return &sessionStore{q: q}
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	var sess model.Session
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at FROM sessions
		WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	return mapErr(s.q.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)
		RETURNING created_at`,
		session.ID, session.UserID, session.ExpiresAt,
	).Scan(&session.CreatedAt))
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}
