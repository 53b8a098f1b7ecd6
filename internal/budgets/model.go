package budgets

import (
	"time"

	"github.com/google/uuid"
)

type Budget struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	BaseCurrencyCode string    `json:"base_currency_code"`
	OwnerUserID      uuid.UUID `json:"owner_user_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type CreateBudgetRequest struct {
	Name             string `json:"name"`
	BaseCurrencyCode string `json:"base_currency_code"`
}

type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
