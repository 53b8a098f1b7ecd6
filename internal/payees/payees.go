package payees

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Payee struct {
	ID        uuid.UUID `json:"id"`
	BudgetID  uuid.UUID `json:"budget_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePayeeRequest struct {
	Name string `json:"name"`
}

type UpdatePayeeRequest struct {
	Name string `json:"name"`
}

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

func (r *Repository) Insert(ctx context.Context, budgetID uuid.UUID, name string) (*Payee, error) {
	var p Payee
	err := r.Pool.QueryRow(
		ctx,
		`INSERT INTO payees (budget_id, name)
		 VALUES ($1, $2)
		 RETURNING id, budget_id, name, created_at`,
		budgetID, name,
	).Scan(&p.ID, &p.BudgetID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetByID(ctx context.Context, budgetID, payeeID uuid.UUID) (*Payee, error) {
	var p Payee
	err := r.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, name, created_at
		 FROM payees
		 WHERE budget_id = $1 AND id = $2`,
		budgetID, payeeID,
	).Scan(&p.ID, &p.BudgetID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]Payee, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT id, budget_id, name, created_at
		 FROM payees
		 WHERE budget_id = $1
		 ORDER BY name`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Payee
	for rows.Next() {
		var p Payee
		if err := rows.Scan(&p.ID, &p.BudgetID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Rename updates the payee's name. Returns nil when the payee does not
// exist in the budget.
func (r *Repository) Rename(ctx context.Context, budgetID, payeeID uuid.UUID, name string) (*Payee, error) {
	var p Payee
	err := r.Pool.QueryRow(
		ctx,
		`UPDATE payees SET name = $3
		 WHERE budget_id = $1 AND id = $2
		 RETURNING id, budget_id, name, created_at`,
		budgetID, payeeID, name,
	).Scan(&p.ID, &p.BudgetID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Delete(ctx context.Context, budgetID, payeeID uuid.UUID) (bool, error) {
	tag, err := r.Pool.Exec(
		ctx,
		`DELETE FROM payees WHERE budget_id = $1 AND id = $2`,
		budgetID, payeeID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type Handler struct {
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) Create(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	var req CreatePayeeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}

	p, err := h.Repo.Insert(userContext(c), budgetID, req.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "payee name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create payee")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	budgetID, payeeID, err := pathIDs(c)
	if err != nil {
		return err
	}

	p, err := h.Repo.GetByID(userContext(c), budgetID, payeeID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load payee")
	}
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "payee not found")
	}
	return c.JSON(p)
}

func (h *Handler) List(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	items, err := h.Repo.ListByBudget(userContext(c), budgetID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load payees")
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	budgetID, payeeID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var req UpdatePayeeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}

	p, err := h.Repo.Rename(userContext(c), budgetID, payeeID, req.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "payee name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update payee")
	}
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "payee not found")
	}
	return c.JSON(p)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	budgetID, payeeID, err := pathIDs(c)
	if err != nil {
		return err
	}

	deleted, err := h.Repo.Delete(userContext(c), budgetID, payeeID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fiber.NewError(fiber.StatusConflict, "payee is referenced by transactions")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete payee")
	}
	if !deleted {
		return fiber.NewError(fiber.StatusNotFound, "payee not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathIDs(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}
	payeeID, err := uuid.Parse(c.Params("payeeID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid payee id")
	}
	return budgetID, payeeID, nil
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
