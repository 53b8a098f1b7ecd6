package currencies

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Currency describes an ISO 4217 code and how many minor units make up one
// major unit (2 for USD, 0 for JPY).
type Currency struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Symbol    *string `json:"symbol"`
	MinorUnit int16   `json:"minor_unit"`
}

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]Currency, error) {
	rows, err := r.Pool.Query(
		ctx,
		`SELECT code, name, symbol, minor_unit FROM currencies ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Currency
	for rows.Next() {
		var cur Currency
		if err := rows.Scan(&cur.Code, &cur.Name, &cur.Symbol, &cur.MinorUnit); err != nil {
			return nil, err
		}
		items = append(items, cur)
	}
	return items, rows.Err()
}

type Handler struct {
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	items, err := h.Repo.List(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load currencies")
	}
	return c.JSON(fiber.Map{"items": items})
}
