package categories

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Category kinds. A category either groups spending or income; transfers
// never carry a category at all.
var categoryKinds = map[string]struct{}{
	"expense": {},
	"income":  {},
}

type Category struct {
	ID         uuid.UUID  `json:"id"`
	BudgetID   uuid.UUID  `json:"budget_id"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	ParentID   *uuid.UUID `json:"parent_id"`
	IsArchived bool       `json:"is_archived"`
	SortOrder  int        `json:"sort_order"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CreateCategoryRequest struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	ParentID  *uuid.UUID `json:"parent_id"`
	SortOrder int        `json:"sort_order"`
}

// UpdateCategoryRequest patches a category in place. Nil fields are left
// unchanged.
type UpdateCategoryRequest struct {
	Name       *string    `json:"name"`
	Kind       *string    `json:"kind"`
	ParentID   *uuid.UUID `json:"parent_id"`
	IsArchived *bool      `json:"is_archived"`
	SortOrder  *int       `json:"sort_order"`
}

// checkParent enforces the one-level category hierarchy: a category cannot
// be its own parent, the parent must exist in the same budget, and the
// parent cannot itself have a parent. selfID is uuid.Nil on create.
func checkParent(selfID, parentID uuid.UUID, parent *Category) error {
	if selfID != uuid.Nil && parentID == selfID {
		return fiber.NewError(fiber.StatusBadRequest, "category cannot be its own parent")
	}
	if parent == nil {
		return fiber.NewError(fiber.StatusBadRequest, "parent category not found")
	}
	if parent.ParentID != nil {
		return fiber.NewError(fiber.StatusBadRequest, "categories cannot nest more than one level")
	}
	return nil
}
