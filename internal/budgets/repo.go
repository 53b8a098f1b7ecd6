package budgets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

// Insert creates the budget and enrolls the creator as its owner in one
// transaction.
func (r *Repository) Insert(ctx context.Context, userID uuid.UUID, req CreateBudgetRequest) (*Budget, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var b Budget
	err = tx.QueryRow(
		ctx,
		`INSERT INTO budgets (name, base_currency_code, owner_user_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, base_currency_code, owner_user_id, created_at`,
		req.Name, req.BaseCurrencyCode, userID,
	).Scan(&b.ID, &b.Name, &b.BaseCurrencyCode, &b.OwnerUserID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO budget_members (budget_id, user_id, role) VALUES ($1, $2, 'owner')`,
		b.ID, userID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Budget, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT b.id, b.name, b.base_currency_code, b.owner_user_id, b.created_at
		 FROM budgets b
		 JOIN budget_members m ON m.budget_id = b.id
		 WHERE m.user_id = $1
		 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.Name, &b.BaseCurrencyCode, &b.OwnerUserID, &b.CreatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *Repository) GetForUser(ctx context.Context, budgetID, userID uuid.UUID) (*Budget, error) {
	var b Budget
	err := r.Pool.QueryRow(
		ctx,
		`SELECT b.id, b.name, b.base_currency_code, b.owner_user_id, b.created_at
		 FROM budgets b
		 JOIN budget_members m ON m.budget_id = b.id
		 WHERE b.id = $1 AND m.user_id = $2`,
		budgetID, userID,
	).Scan(&b.ID, &b.Name, &b.BaseCurrencyCode, &b.OwnerUserID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListMembers(ctx context.Context, budgetID uuid.UUID) ([]Member, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT m.user_id, u.email, m.role, m.created_at
		 FROM budget_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.budget_id = $1
		 ORDER BY m.created_at`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *Repository) Exists(ctx context.Context, budgetID uuid.UUID) (bool, error) {
	var exists bool
	err := r.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM budgets WHERE id = $1)`,
		budgetID,
	).Scan(&exists)
	return exists, err
}

func (r *Repository) IsMember(ctx context.Context, budgetID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM budget_members WHERE budget_id = $1 AND user_id = $2
		 )`,
		budgetID, userID,
	).Scan(&exists)
	return exists, err
}
