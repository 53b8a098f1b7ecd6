package categories

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

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

	var req CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = "expense"
	}
	if _, ok := categoryKinds[req.Kind]; !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid kind")
	}

	ctx := userContext(c)
	if req.ParentID != nil {
		parent, err := h.Repo.GetByID(ctx, budgetID, *req.ParentID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load parent category")
		}
		if err := checkParent(uuid.Nil, *req.ParentID, parent); err != nil {
			return err
		}
	}

	cat, err := h.Repo.Insert(ctx, budgetID, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "category name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create category")
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	budgetID, categoryID, err := pathIDs(c)
	if err != nil {
		return err
	}

	cat, err := h.Repo.GetByID(userContext(c), budgetID, categoryID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load category")
	}
	if cat == nil {
		return fiber.NewError(fiber.StatusNotFound, "category not found")
	}
	return c.JSON(cat)
}

func (h *Handler) List(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	items, err := h.Repo.ListByBudget(userContext(c), budgetID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load categories")
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	budgetID, categoryID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var req UpdateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Name == nil && req.Kind == nil && req.ParentID == nil && req.IsArchived == nil && req.SortOrder == nil {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		req.Name = &trimmed
	}
	if req.Kind != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.Kind))
		if _, ok := categoryKinds[normalized]; !ok {
			return fiber.NewError(fiber.StatusBadRequest, "invalid kind")
		}
		req.Kind = &normalized
	}

	ctx := userContext(c)
	if req.ParentID != nil {
		parent, err := h.Repo.GetByID(ctx, budgetID, *req.ParentID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load parent category")
		}
		if err := checkParent(categoryID, *req.ParentID, parent); err != nil {
			return err
		}
	}

	cat, err := h.Repo.Update(ctx, budgetID, categoryID, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "category name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update category")
	}
	if cat == nil {
		return fiber.NewError(fiber.StatusNotFound, "category not found")
	}
	return c.JSON(cat)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	budgetID, categoryID, err := pathIDs(c)
	if err != nil {
		return err
	}

	deleted, err := h.Repo.Delete(userContext(c), budgetID, categoryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fiber.NewError(fiber.StatusConflict, "category is in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete category")
	}
	if !deleted {
		return fiber.NewError(fiber.StatusNotFound, "category not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathIDs(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}
	categoryID, err := uuid.Parse(c.Params("categoryID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid category id")
	}
	return budgetID, categoryID, nil
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
