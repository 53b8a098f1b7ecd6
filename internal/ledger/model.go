package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction status values mirror the transactions.status column.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPosted     Status = "posted"
	StatusReconciled Status = "reconciled"
	StatusVoid       Status = "void"
)

// ParseStatus normalizes a raw status value ("POSTED ", "pending", ...).
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusPosted:
		return StatusPosted, true
	case StatusReconciled:
		return StatusReconciled, true
	case StatusVoid:
		return StatusVoid, true
	}
	return "", false
}

const (
	maxStatusLen   = 20
	maxNotesLen    = 500
	maxMemoLen     = 300
	maxImportIDLen = 200
)

// Line is one signed minor-unit entry within a transaction, tied to exactly
// one account. Lines never outlive their transaction.
type Line struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	AccountID     uuid.UUID   `json:"account_id"`
	CategoryID    *uuid.UUID  `json:"category_id"`
	PayeeID       *uuid.UUID  `json:"payee_id"`
	AmountMinor   int64       `json:"amount_minor"`
	Memo          *string     `json:"memo"`
	TagIDs        []uuid.UUID `json:"tag_ids"`
}

// Transaction is the aggregate root. Lines is nil when loaded without lines
// and omitted from the response in that case.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	BudgetID  uuid.UUID `json:"budget_id"`
	PostedAt  time.Time `json:"posted_at"`
	Status    Status    `json:"status"`
	Notes     *string   `json:"notes"`
	ImportID  *string   `json:"import_id"`
	CreatedAt time.Time `json:"created_at"`
	Lines     []Line    `json:"lines,omitempty"`
}

// LineInput is the request shape for a brand-new line (create, split, import).
type LineInput struct {
	AccountID   uuid.UUID   `json:"account_id"`
	CategoryID  *uuid.UUID  `json:"category_id"`
	PayeeID     *uuid.UUID  `json:"payee_id"`
	AmountMinor int64       `json:"amount_minor"`
	Memo        *string     `json:"memo"`
	TagIDs      []uuid.UUID `json:"tag_ids"`
}

type CreateRequest struct {
	PostedAt *Timestamp `json:"posted_at"`
	Status   *string    `json:"status"`
	Notes    *string    `json:"notes"`
	ImportID *string    `json:"import_id"`
	Line     *LineInput `json:"line"`
}

type TransferRequest struct {
	FromAccountID uuid.UUID  `json:"from_account_id"`
	ToAccountID   uuid.UUID  `json:"to_account_id"`
	AmountMinor   int64      `json:"amount_minor"`
	CategoryID    *uuid.UUID `json:"category_id"`
	PayeeID       *uuid.UUID `json:"payee_id"`
	PostedAt      *Timestamp `json:"posted_at"`
	Status        *string    `json:"status"`
	Notes         *string    `json:"notes"`
	Memo          *string    `json:"memo"`
}

// LineEdit edits an existing line in place. Optional fields distinguish
// "absent" from an explicit null so category/payee/memo/tags can be cleared.
type LineEdit struct {
	LineID      uuid.UUID             `json:"line_id"`
	AccountID   Optional[uuid.UUID]   `json:"account_id"`
	CategoryID  Optional[uuid.UUID]   `json:"category_id"`
	PayeeID     Optional[uuid.UUID]   `json:"payee_id"`
	AmountMinor Optional[int64]       `json:"amount_minor"`
	Memo        Optional[string]      `json:"memo"`
	TagIDs      Optional[[]uuid.UUID] `json:"tag_ids"`
}

type UpdateRequest struct {
	PostedAt Optional[Timestamp]  `json:"posted_at"`
	Status   Optional[string]     `json:"status"`
	Notes    Optional[string]     `json:"notes"`
	ImportID Optional[string]     `json:"import_id"`
	Lines    Optional[[]LineEdit] `json:"lines"`
}

type SplitRequest struct {
	Lines []LineInput `json:"lines"`
}

type ImportRequest struct {
	Transactions []CreateRequest `json:"transactions"`
}

type ImportResult struct {
	CreatedCount  int `json:"created_count"`
	ExistingCount int `json:"existing_count"`
}

// normalizePostedAt applies the timestamp convention: absent means now, and
// everything is carried as UTC.
func normalizePostedAt(ts *Timestamp) time.Time {
	if ts == nil || ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
