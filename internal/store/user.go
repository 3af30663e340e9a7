package store

import (
	"context"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, identity_id, created_at, updated_at`

type userStore struct {
	q db.Querier
}

func newUserStore(q db.Querier) UserStore {
	return &userStore{q: q}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *userStore) Upsert(ctx context.Context, user *model.User) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO users (id, email, name, identity_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    identity_id = COALESCE(EXCLUDED.identity_id, users.identity_id),
		    updated_at = now()
		RETURNING `+userColumns,
		user.ID, user.Email, user.Name, user.IdentityID,
	)
	saved, err := scanUser(row)
	if err != nil {
		return err
	}
	*user = *saved
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IdentityID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
