package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	Pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

// UpsertByEmail returns the user id for an email, inserting the row if it
// does not exist yet.
func (r *Repo) UpsertByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.Pool.QueryRow(
		ctx,
		`INSERT INTO users (email)
		 VALUES ($1)
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING id`,
		email,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repo) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	_, err := r.Pool.Exec(
		ctx,
		`UPDATE users SET last_seen_at = NOW() WHERE id = $1`,
		userID,
	)
	return err
}
