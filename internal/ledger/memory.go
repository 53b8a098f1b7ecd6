package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store backed by maps. It exists for handler and engine
// tests; the API binary runs against PgStore.
type MemoryStore struct {
	mu sync.RWMutex

	budgets      map[uuid.UUID]string
	accounts     map[uuid.UUID]AccountRef
	categories   map[uuid.UUID]uuid.UUID
	payees       map[uuid.UUID]uuid.UUID
	tags         map[uuid.UUID]uuid.UUID
	transactions map[uuid.UUID]*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		budgets:      make(map[uuid.UUID]string),
		accounts:     make(map[uuid.UUID]AccountRef),
		categories:   make(map[uuid.UUID]uuid.UUID),
		payees:       make(map[uuid.UUID]uuid.UUID),
		tags:         make(map[uuid.UUID]uuid.UUID),
		transactions: make(map[uuid.UUID]*Transaction),
	}
}

func (m *MemoryStore) SeedBudget(baseCurrency string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.budgets[id] = baseCurrency
	return id
}

func (m *MemoryStore) SeedAccount(budgetID uuid.UUID, currencyCode string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.accounts[id] = AccountRef{ID: id, BudgetID: budgetID, CurrencyCode: currencyCode}
	return id
}

func (m *MemoryStore) SeedCategory(budgetID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.categories[id] = budgetID
	return id
}

func (m *MemoryStore) SeedPayee(budgetID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.payees[id] = budgetID
	return id
}

func (m *MemoryStore) SeedTag(budgetID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.tags[id] = budgetID
	return id
}

func (m *MemoryStore) AccountRef(ctx context.Context, accountID uuid.UUID) (*AccountRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.accounts[accountID]
	if !ok {
		return nil, nil
	}
	copied := ref
	return &copied, nil
}

func (m *MemoryStore) CategoryInBudget(ctx context.Context, budgetID, categoryID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.categories[categoryID]
	return ok && owner == budgetID, nil
}

func (m *MemoryStore) PayeeInBudget(ctx context.Context, budgetID, payeeID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.payees[payeeID]
	return ok && owner == budgetID, nil
}

func (m *MemoryStore) TagIDsInBudget(ctx context.Context, budgetID uuid.UUID, tagIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[uuid.UUID]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if owner, ok := m.tags[id]; ok && owner == budgetID {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (m *MemoryStore) BudgetBaseCurrency(ctx context.Context, budgetID uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.budgets[budgetID]
	if !ok {
		return "", notFound("budget not found")
	}
	return code, nil
}

func (m *MemoryStore) Transaction(ctx context.Context, transactionID uuid.UUID, includeLines bool) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.transactions[transactionID]
	if !ok {
		return nil, nil
	}
	return copyTransaction(txn, includeLines), nil
}

func (m *MemoryStore) Transactions(ctx context.Context, budgetID uuid.UUID, includeLines bool) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := []Transaction{}
	for _, txn := range m.transactions {
		if txn.BudgetID != budgetID {
			continue
		}
		items = append(items, *copyTransaction(txn, includeLines))
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.PostedAt.Equal(b.PostedAt) {
			return a.PostedAt.After(b.PostedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
	return items, nil
}

func (m *MemoryStore) ImportIDTaken(ctx context.Context, budgetID uuid.UUID, importID string, exclude uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, txn := range m.transactions {
		if txn.BudgetID != budgetID || txn.ID == exclude || txn.ImportID == nil {
			continue
		}
		if *txn.ImportID == importID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ExistingImportIDs(ctx context.Context, budgetID uuid.UUID, importIDs []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]struct{}, len(importIDs))
	for _, id := range importIDs {
		wanted[id] = struct{}{}
	}
	existing := make(map[string]struct{})
	for _, txn := range m.transactions {
		if txn.BudgetID != budgetID || txn.ImportID == nil {
			continue
		}
		if _, ok := wanted[*txn.ImportID]; ok {
			existing[*txn.ImportID] = struct{}{}
		}
	}
	return existing, nil
}

func (m *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	staged := make(map[uuid.UUID]*Transaction, len(m.transactions))
	for id, txn := range m.transactions {
		staged[id] = copyTransaction(txn, true)
	}
	m.mu.Unlock()
	return &memoryTx{store: m, staged: staged}, nil
}

// memoryTx stages writes against a deep copy of the transactions map and
// swaps it in on Commit. Rollback simply drops the copy.
type memoryTx struct {
	store  *MemoryStore
	staged map[uuid.UUID]*Transaction
	done   bool
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.transactions = t.staged
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	stored := copyTransaction(txn, true)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	t.staged[stored.ID] = stored
	return nil
}

func (t *memoryTx) UpdateTransactionFields(ctx context.Context, transactionID uuid.UUID, patch FieldPatch) error {
	txn, ok := t.staged[transactionID]
	if !ok {
		return notFound("transaction not found")
	}
	if patch.PostedAt != nil {
		txn.PostedAt = patch.PostedAt.UTC()
	}
	if patch.Status != nil {
		txn.Status = *patch.Status
	}
	if patch.Notes.Set {
		txn.Notes = patch.Notes.Ptr()
	}
	if patch.ImportID != nil {
		txn.ImportID = patch.ImportID
	}
	return nil
}

func (t *memoryTx) UpdateLine(ctx context.Context, patch LinePatch) error {
	line := t.findLine(patch.LineID)
	if line == nil {
		return notFound("line not found")
	}
	if patch.AccountID != nil {
		line.AccountID = *patch.AccountID
	}
	if patch.CategoryID.Set {
		line.CategoryID = patch.CategoryID.Ptr()
	}
	if patch.PayeeID.Set {
		line.PayeeID = patch.PayeeID.Ptr()
	}
	if patch.AmountMinor != nil {
		line.AmountMinor = *patch.AmountMinor
	}
	if patch.Memo.Set {
		line.Memo = patch.Memo.Ptr()
	}
	return nil
}

func (t *memoryTx) ReplaceLineTags(ctx context.Context, lineID uuid.UUID, tagIDs []uuid.UUID) error {
	line := t.findLine(lineID)
	if line == nil {
		return notFound("line not found")
	}
	line.TagIDs = append([]uuid.UUID(nil), tagIDs...)
	return nil
}

func (t *memoryTx) ReplaceLines(ctx context.Context, transactionID uuid.UUID, lines []Line) error {
	txn, ok := t.staged[transactionID]
	if !ok {
		return notFound("transaction not found")
	}
	txn.Lines = make([]Line, len(lines))
	for i, line := range lines {
		copied := line
		copied.TransactionID = transactionID
		copied.TagIDs = append([]uuid.UUID(nil), line.TagIDs...)
		txn.Lines[i] = copied
	}
	return nil
}

func (t *memoryTx) DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	delete(t.staged, transactionID)
	return nil
}

func (t *memoryTx) findLine(lineID uuid.UUID) *Line {
	for _, txn := range t.staged {
		for i := range txn.Lines {
			if txn.Lines[i].ID == lineID {
				return &txn.Lines[i]
			}
		}
	}
	return nil
}

// copyTransaction deep-copies a stored transaction, applying the read-side
// ordering: lines ascending by id, tag ids ascending.
func copyTransaction(txn *Transaction, includeLines bool) *Transaction {
	copied := *txn
	copied.Lines = nil
	if !includeLines {
		return &copied
	}
	copied.Lines = make([]Line, len(txn.Lines))
	for i, line := range txn.Lines {
		l := line
		l.TagIDs = append([]uuid.UUID(nil), line.TagIDs...)
		sort.Slice(l.TagIDs, func(a, b int) bool {
			return bytes.Compare(l.TagIDs[a][:], l.TagIDs[b][:]) < 0
		})
		copied.Lines[i] = l
	}
	sort.Slice(copied.Lines, func(a, b int) bool {
		return bytes.Compare(copied.Lines[a].ID[:], copied.Lines[b].ID[:]) < 0
	})
	return &copied
}
