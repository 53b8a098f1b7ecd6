package categories

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

func (r *Repository) Insert(ctx context.Context, budgetID uuid.UUID, req CreateCategoryRequest) (*Category, error) {
	var cat Category
	err := r.Pool.QueryRow(
		ctx,
		`INSERT INTO categories (budget_id, name, kind, parent_id, sort_order)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, budget_id, name, kind, parent_id, is_archived, sort_order, created_at`,
		budgetID, req.Name, req.Kind, req.ParentID, req.SortOrder,
	).Scan(&cat.ID, &cat.BudgetID, &cat.Name, &cat.Kind, &cat.ParentID, &cat.IsArchived, &cat.SortOrder, &cat.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *Repository) GetByID(ctx context.Context, budgetID, categoryID uuid.UUID) (*Category, error) {
	var cat Category
	err := r.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, name, kind, parent_id, is_archived, sort_order, created_at
		 FROM categories
		 WHERE budget_id = $1 AND id = $2`,
		budgetID, categoryID,
	).Scan(&cat.ID, &cat.BudgetID, &cat.Name, &cat.Kind, &cat.ParentID, &cat.IsArchived, &cat.SortOrder, &cat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *Repository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]Category, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT id, budget_id, name, kind, parent_id, is_archived, sort_order, created_at
		 FROM categories
		 WHERE budget_id = $1
		 ORDER BY sort_order, name`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.BudgetID, &cat.Name, &cat.Kind, &cat.ParentID, &cat.IsArchived, &cat.SortOrder, &cat.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, cat)
	}
	return items, rows.Err()
}

// Update patches the category; nil request fields keep the current value.
// Returns nil when the category does not exist in the budget.
func (r *Repository) Update(ctx context.Context, budgetID, categoryID uuid.UUID, req UpdateCategoryRequest) (*Category, error) {
	var cat Category
	err := r.Pool.QueryRow(
		ctx,
		`UPDATE categories
		 SET name = COALESCE($3, name),
		     kind = COALESCE($4, kind),
		     parent_id = COALESCE($5, parent_id),
		     is_archived = COALESCE($6, is_archived),
		     sort_order = COALESCE($7, sort_order)
		 WHERE budget_id = $1 AND id = $2
		 RETURNING id, budget_id, name, kind, parent_id, is_archived, sort_order, created_at`,
		budgetID, categoryID, req.Name, req.Kind, req.ParentID, req.IsArchived, req.SortOrder,
	).Scan(&cat.ID, &cat.BudgetID, &cat.Name, &cat.Kind, &cat.ParentID, &cat.IsArchived, &cat.SortOrder, &cat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *Repository) Delete(ctx context.Context, budgetID, categoryID uuid.UUID) (bool, error) {
	tag, err := r.Pool.Exec(
		ctx,
		`DELETE FROM categories WHERE budget_id = $1 AND id = $2`,
		budgetID, categoryID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
