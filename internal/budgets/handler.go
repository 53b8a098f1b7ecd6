package budgets

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MasonFlint44/budgetbros-budget-api/internal/auth"
)

type Handler struct {
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) Create(c *fiber.Ctx) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req CreateBudgetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}
	req.BaseCurrencyCode = strings.ToUpper(strings.TrimSpace(req.BaseCurrencyCode))
	if req.BaseCurrencyCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "base_currency_code required")
	}

	b, err := h.Repo.Insert(userContext(c), userID, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fiber.NewError(fiber.StatusBadRequest, "unknown currency code")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create budget")
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *Handler) List(c *fiber.Ctx) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	items, err := h.Repo.ListForUser(userContext(c), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load budgets")
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	b, err := h.Repo.GetForUser(userContext(c), budgetID, userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load budget")
	}
	if b == nil {
		return fiber.NewError(fiber.StatusNotFound, "budget not found")
	}
	return c.JSON(b)
}

func (h *Handler) ListMembers(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	members, err := h.Repo.ListMembers(userContext(c), budgetID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load members")
	}
	return c.JSON(fiber.Map{"items": members})
}

// RequireMember guards every /budgets/:budgetID subtree. Missing budgets are
// 404; budgets the caller can see exist but is not a member of are 403.
func (h *Handler) RequireMember(c *fiber.Ctx) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	ctx := userContext(c)
	member, err := h.Repo.IsMember(ctx, budgetID, userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to check membership")
	}
	if !member {
		exists, err := h.Repo.Exists(ctx, budgetID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to check membership")
		}
		if exists {
			return fiber.NewError(fiber.StatusForbidden, "not a member of this budget")
		}
		return fiber.NewError(fiber.StatusNotFound, "budget not found")
	}
	return c.Next()
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
