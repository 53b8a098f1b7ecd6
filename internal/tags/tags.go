package tags

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

type Tag struct {
	ID        uuid.UUID `json:"id"`
	BudgetID  uuid.UUID `json:"budget_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateTagRequest struct {
	Name string `json:"name"`
}

type UpdateTagRequest struct {
	Name string `json:"name"`
}

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

func (r *Repository) Insert(ctx context.Context, budgetID uuid.UUID, name string) (*Tag, error) {
	var t Tag
	err := r.Pool.QueryRow(
		ctx,
		`INSERT INTO tags (budget_id, name)
		 VALUES ($1, $2)
		 RETURNING id, budget_id, name, created_at`,
		budgetID, name,
	).Scan(&t.ID, &t.BudgetID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetByID(ctx context.Context, budgetID, tagID uuid.UUID) (*Tag, error) {
	var t Tag
	err := r.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, name, created_at
		 FROM tags
		 WHERE budget_id = $1 AND id = $2`,
		budgetID, tagID,
	).Scan(&t.ID, &t.BudgetID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]Tag, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT id, budget_id, name, created_at
		 FROM tags
		 WHERE budget_id = $1
		 ORDER BY name`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.BudgetID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// Rename updates the tag's name. Returns nil when the tag does not exist in
// the budget.
func (r *Repository) Rename(ctx context.Context, budgetID, tagID uuid.UUID, name string) (*Tag, error) {
	var t Tag
	err := r.Pool.QueryRow(
		ctx,
		`UPDATE tags SET name = $3
		 WHERE budget_id = $1 AND id = $2
		 RETURNING id, budget_id, name, created_at`,
		budgetID, tagID, name,
	).Scan(&t.ID, &t.BudgetID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the tag; line associations go with it via the cascade on
// transaction_line_tags.
func (r *Repository) Delete(ctx context.Context, budgetID, tagID uuid.UUID) (bool, error) {
	tag, err := r.Pool.Exec(
		ctx,
		`DELETE FROM tags WHERE budget_id = $1 AND id = $2`,
		budgetID, tagID,
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

	var req CreateTagRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}

	t, err := h.Repo.Insert(userContext(c), budgetID, req.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "tag name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create tag")
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	budgetID, tagID, err := pathIDs(c)
	if err != nil {
		return err
	}

	t, err := h.Repo.GetByID(userContext(c), budgetID, tagID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load tag")
	}
	if t == nil {
		return fiber.NewError(fiber.StatusNotFound, "tag not found")
	}
	return c.JSON(t)
}

func (h *Handler) List(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	items, err := h.Repo.ListByBudget(userContext(c), budgetID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load tags")
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	budgetID, tagID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var req UpdateTagRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}

	t, err := h.Repo.Rename(userContext(c), budgetID, tagID, req.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "tag name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update tag")
	}
	if t == nil {
		return fiber.NewError(fiber.StatusNotFound, "tag not found")
	}
	return c.JSON(t)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	budgetID, tagID, err := pathIDs(c)
	if err != nil {
		return err
	}

	deleted, err := h.Repo.Delete(userContext(c), budgetID, tagID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete tag")
	}
	if !deleted {
		return fiber.NewError(fiber.StatusNotFound, "tag not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathIDs(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}
	tagID, err := uuid.Parse(c.Params("tagID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid tag id")
	}
	return budgetID, tagID, nil
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
