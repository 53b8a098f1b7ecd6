package accounts

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

func (r *Repository) Insert(ctx context.Context, budgetID uuid.UUID, req CreateAccountRequest) (*Account, error) {
	var a Account
	err := r.Pool.QueryRow(
		ctx,
		`INSERT INTO accounts (budget_id, name, account_type, currency_code)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, budget_id, name, account_type, currency_code, is_active, created_at`,
		budgetID, req.Name, req.AccountType, req.CurrencyCode,
	).Scan(&a.ID, &a.BudgetID, &a.Name, &a.AccountType, &a.CurrencyCode, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) GetByID(ctx context.Context, budgetID, accountID uuid.UUID) (*Account, error) {
	var a Account
	err := r.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, name, account_type, currency_code, is_active, created_at
		 FROM accounts
		 WHERE budget_id = $1 AND id = $2`,
		budgetID, accountID,
	).Scan(&a.ID, &a.BudgetID, &a.Name, &a.AccountType, &a.CurrencyCode, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]Account, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT id, budget_id, name, account_type, currency_code, is_active, created_at
		 FROM accounts
		 WHERE budget_id = $1
		 ORDER BY name`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BudgetID, &a.Name, &a.AccountType, &a.CurrencyCode, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Update patches the account; nil request fields keep the current value.
// Returns nil when the account does not exist in the budget.
func (r *Repository) Update(ctx context.Context, budgetID, accountID uuid.UUID, req UpdateAccountRequest) (*Account, error) {
	var a Account
	err := r.Pool.QueryRow(
		ctx,
		`UPDATE accounts
		 SET name = COALESCE($3, name),
		     account_type = COALESCE($4, account_type),
		     is_active = COALESCE($5, is_active)
		 WHERE budget_id = $1 AND id = $2
		 RETURNING id, budget_id, name, account_type, currency_code, is_active, created_at`,
		budgetID, accountID, req.Name, req.AccountType, req.IsActive,
	).Scan(&a.ID, &a.BudgetID, &a.Name, &a.AccountType, &a.CurrencyCode, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) Delete(ctx context.Context, budgetID, accountID uuid.UUID) (bool, error) {
	tag, err := r.Pool.Exec(
		ctx,
		`DELETE FROM accounts WHERE budget_id = $1 AND id = $2`,
		budgetID, accountID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
