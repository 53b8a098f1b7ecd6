package ledger

import (
	"context"

	"github.com/google/uuid"
)

// AccountRef is the slice of an account the engine cares about: which budget
// it belongs to and what currency it holds.
type AccountRef struct {
	ID           uuid.UUID
	BudgetID     uuid.UUID
	CurrencyCode string
}

// FieldPatch carries transaction-level field edits. Nil pointer means leave
// unchanged; Notes uses Optional so an explicit null clears the column.
type FieldPatch struct {
	PostedAt *Timestamp
	Status   *Status
	Notes    Optional[string]
	ImportID *string
}

func (p FieldPatch) Empty() bool {
	return p.PostedAt == nil && p.Status == nil && !p.Notes.Set && p.ImportID == nil
}

// LinePatch carries in-place edits for one existing line.
type LinePatch struct {
	LineID      uuid.UUID
	AccountID   *uuid.UUID
	CategoryID  Optional[uuid.UUID]
	PayeeID     Optional[uuid.UUID]
	AmountMinor *int64
	Memo        Optional[string]
}

func (p LinePatch) Empty() bool {
	return p.AccountID == nil && !p.CategoryID.Set && !p.PayeeID.Set &&
		p.AmountMinor == nil && !p.Memo.Set
}

// Store is the persistence surface the invariant engine runs against.
// Reads resolve references and load aggregates; the Tx returned by Begin is
// the atomic-commit boundary every mutation sequence runs inside.
type Store interface {
	AccountRef(ctx context.Context, accountID uuid.UUID) (*AccountRef, error)
	CategoryInBudget(ctx context.Context, budgetID, categoryID uuid.UUID) (bool, error)
	PayeeInBudget(ctx context.Context, budgetID, payeeID uuid.UUID) (bool, error)
	TagIDsInBudget(ctx context.Context, budgetID uuid.UUID, tagIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	BudgetBaseCurrency(ctx context.Context, budgetID uuid.UUID) (string, error)

	Transaction(ctx context.Context, transactionID uuid.UUID, includeLines bool) (*Transaction, error)
	Transactions(ctx context.Context, budgetID uuid.UUID, includeLines bool) ([]Transaction, error)
	ImportIDTaken(ctx context.Context, budgetID uuid.UUID, importID string, exclude uuid.UUID) (bool, error)
	ExistingImportIDs(ctx context.Context, budgetID uuid.UUID, importIDs []string) (map[string]struct{}, error)

	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. Either everything staged through it commits
// together or nothing does; the engine never persists a partial aggregate.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	InsertTransaction(ctx context.Context, txn *Transaction) error
	UpdateTransactionFields(ctx context.Context, transactionID uuid.UUID, patch FieldPatch) error
	UpdateLine(ctx context.Context, patch LinePatch) error
	ReplaceLineTags(ctx context.Context, lineID uuid.UUID, tagIDs []uuid.UUID) error
	ReplaceLines(ctx context.Context, transactionID uuid.UUID, lines []Line) error
	DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error
}
