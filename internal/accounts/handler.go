package accounts

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

	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}
	req.AccountType = strings.ToLower(strings.TrimSpace(req.AccountType))
	if req.AccountType == "" {
		req.AccountType = "checking"
	}
	if _, ok := accountTypes[req.AccountType]; !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account_type")
	}
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if req.CurrencyCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "currency_code required")
	}

	a, err := h.Repo.Insert(userContext(c), budgetID, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return fiber.NewError(fiber.StatusConflict, "account name already in use")
			case "23503":
				return fiber.NewError(fiber.StatusBadRequest, "unknown currency code")
			}
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create account")
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	budgetID, accountID, err := pathIDs(c)
	if err != nil {
		return err
	}

	a, err := h.Repo.GetByID(userContext(c), budgetID, accountID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}
	if a == nil {
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	}
	return c.JSON(a)
}

func (h *Handler) List(c *fiber.Ctx) error {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}

	items, err := h.Repo.ListByBudget(userContext(c), budgetID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load accounts")
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Update(c *fiber.Ctx) error {
	budgetID, accountID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var req UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Name == nil && req.AccountType == nil && req.IsActive == nil {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		req.Name = &trimmed
	}
	if req.AccountType != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.AccountType))
		if _, ok := accountTypes[normalized]; !ok {
			return fiber.NewError(fiber.StatusBadRequest, "invalid account_type")
		}
		req.AccountType = &normalized
	}

	a, err := h.Repo.Update(userContext(c), budgetID, accountID, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fiber.NewError(fiber.StatusConflict, "account name already in use")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update account")
	}
	if a == nil {
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	}
	return c.JSON(a)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	budgetID, accountID, err := pathIDs(c)
	if err != nil {
		return err
	}

	deleted, err := h.Repo.Delete(userContext(c), budgetID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fiber.NewError(fiber.StatusConflict, "account is referenced by transactions")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete account")
	}
	if !deleted {
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathIDs(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	budgetID, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}
	accountID, err := uuid.Parse(c.Params("accountID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid account id")
	}
	return budgetID, accountID, nil
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
