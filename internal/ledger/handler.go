package ledger

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuditFunc records a mutation for the audit trail. It must not block; the
// handler calls it after the write has committed.
type AuditFunc func(c *fiber.Ctx, action string, budgetID uuid.UUID, entityID *uuid.UUID)

type Handler struct {
	Service *Service
	Audit   AuditFunc
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) record(c *fiber.Ctx, action string, budgetID uuid.UUID, entityID *uuid.UUID) {
	if h.Audit != nil {
		h.Audit(c, action, budgetID, entityID)
	}
}

func (h *Handler) Create(c *fiber.Ctx) error {
	budgetID, err := budgetParam(c)
	if err != nil {
		return err
	}

	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	txn, err := h.Service.Create(userContext(c), budgetID, req)
	if err != nil {
		return respondError(c, err)
	}
	h.record(c, "transaction.create", budgetID, &txn.ID)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

func (h *Handler) CreateTransfer(c *fiber.Ctx) error {
	budgetID, err := budgetParam(c)
	if err != nil {
		return err
	}

	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	txn, err := h.Service.CreateTransfer(userContext(c), budgetID, req)
	if err != nil {
		return respondError(c, err)
	}
	h.record(c, "transfer.create", budgetID, &txn.ID)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

func (h *Handler) List(c *fiber.Ctx) error {
	budgetID, err := budgetParam(c)
	if err != nil {
		return err
	}

	items, err := h.Service.List(userContext(c), budgetID, c.QueryBool("include_lines", true))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	budgetID, transactionID, err := transactionParams(c)
	if err != nil {
		return err
	}

	txn, err := h.Service.Get(userContext(c), budgetID, transactionID, c.QueryBool("include_lines", true))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txn)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	budgetID, transactionID, err := transactionParams(c)
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	txn, err := h.Service.Update(userContext(c), budgetID, transactionID, req)
	if err != nil {
		return respondError(c, err)
	}
	h.record(c, "transaction.update", budgetID, &txn.ID)
	return c.JSON(txn)
}

func (h *Handler) Split(c *fiber.Ctx) error {
	budgetID, transactionID, err := transactionParams(c)
	if err != nil {
		return err
	}

	var req SplitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	txn, err := h.Service.Split(userContext(c), budgetID, transactionID, req)
	if err != nil {
		return respondError(c, err)
	}
	h.record(c, "transaction.split", budgetID, &txn.ID)
	return c.JSON(txn)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	budgetID, transactionID, err := transactionParams(c)
	if err != nil {
		return err
	}

	if err := h.Service.Delete(userContext(c), budgetID, transactionID); err != nil {
		return respondError(c, err)
	}
	h.record(c, "transaction.delete", budgetID, &transactionID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Import(c *fiber.Ctx) error {
	budgetID, err := budgetParam(c)
	if err != nil {
		return err
	}

	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	result, err := h.Service.Import(userContext(c), budgetID, req)
	if err != nil {
		return respondError(c, err)
	}
	h.record(c, "transaction.import", budgetID, nil)

	status := fiber.StatusCreated
	if result.ExistingCount > 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(result)
}

func budgetParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("budgetID"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid budget id")
	}
	return id, nil
}

func transactionParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	budgetID, err := budgetParam(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	transactionID, err := uuid.Parse(c.Params("transactionID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}
	return budgetID, transactionID, nil
}

// respondError maps domain errors to JSON responses. Anything that is not a
// *ledger.Error bubbles up to the app's error handler as a 500.
func respondError(c *fiber.Ctx, err error) error {
	var lerr *Error
	if !errors.As(err, &lerr) {
		return err
	}
	body := fiber.Map{"error": lerr.Message}
	if len(lerr.Failures) > 0 {
		body["failures"] = lerr.Failures
	}
	return c.Status(lerr.Status()).JSON(body)
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
