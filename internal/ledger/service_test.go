package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type fixture struct {
	store   *MemoryStore
	svc     *Service
	budget  uuid.UUID
	account uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	budget := store.SeedBudget("USD")
	return &fixture{
		store:   store,
		svc:     NewService(store),
		budget:  budget,
		account: store.SeedAccount(budget, "USD"),
	}
}

func (f *fixture) mustCreate(t *testing.T, req CreateRequest) *Transaction {
	t.Helper()
	txn, err := f.svc.Create(context.Background(), f.budget, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return txn
}

func ptr[T any](v T) *T {
	return &v
}

func wantCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", code)
	}
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("want *ledger.Error, got %T: %v", err, err)
	}
	if lerr.Code != code {
		t.Fatalf("code = %s, want %s (%v)", lerr.Code, code, err)
	}
	return lerr
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	category := f.store.SeedCategory(f.budget)
	payee := f.store.SeedPayee(f.budget)
	tag := f.store.SeedTag(f.budget)

	before := time.Now().UTC()
	txn := f.mustCreate(t, CreateRequest{
		Status: ptr("  POSTED "),
		Notes:  ptr("groceries"),
		Line: &LineInput{
			AccountID:   f.account,
			CategoryID:  &category,
			PayeeID:     &payee,
			AmountMinor: -1250,
			TagIDs:      []uuid.UUID{tag, tag},
		},
	})

	if txn.Status != StatusPosted {
		t.Errorf("status = %s, want posted", txn.Status)
	}
	if txn.PostedAt.Before(before) || txn.PostedAt.Location() != time.UTC {
		t.Errorf("posted_at not defaulted to now UTC: %v", txn.PostedAt)
	}
	if len(txn.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(txn.Lines))
	}
	line := txn.Lines[0]
	if line.AmountMinor != -1250 {
		t.Errorf("amount = %d, want -1250", line.AmountMinor)
	}
	if len(line.TagIDs) != 1 || line.TagIDs[0] != tag {
		t.Errorf("tag ids not deduped: %v", line.TagIDs)
	}
}

func TestCreateNaivePostedAt(t *testing.T) {
	f := newFixture(t)
	var ts Timestamp
	if err := ts.UnmarshalJSON([]byte(`"2025-01-02T03:04:05"`)); err != nil {
		t.Fatalf("parse: %v", err)
	}

	txn := f.mustCreate(t, CreateRequest{
		PostedAt: &ts,
		Line:     &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if !txn.PostedAt.Equal(want) {
		t.Errorf("posted_at = %v, want %v", txn.PostedAt, want)
	}
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	otherBudget := f.store.SeedBudget("USD")
	foreignAccount := f.store.SeedAccount(otherBudget, "USD")
	foreignCategory := f.store.SeedCategory(otherBudget)

	tests := []struct {
		name string
		req  CreateRequest
		code Code
	}{
		{
			name: "missing line",
			req:  CreateRequest{},
			code: CodeInvalidOperation,
		},
		{
			name: "zero amount",
			req:  CreateRequest{Line: &LineInput{AccountID: f.account, AmountMinor: 0}},
			code: CodeInvalidShape,
		},
		{
			name: "unknown account",
			req:  CreateRequest{Line: &LineInput{AccountID: uuid.New(), AmountMinor: -100}},
			code: CodeInvalidReference,
		},
		{
			name: "account from another budget",
			req:  CreateRequest{Line: &LineInput{AccountID: foreignAccount, AmountMinor: -100}},
			code: CodeInvalidReference,
		},
		{
			name: "category from another budget",
			req: CreateRequest{Line: &LineInput{
				AccountID: f.account, CategoryID: &foreignCategory, AmountMinor: -100,
			}},
			code: CodeInvalidReference,
		},
		{
			name: "unknown tag",
			req: CreateRequest{Line: &LineInput{
				AccountID: f.account, AmountMinor: -100, TagIDs: []uuid.UUID{uuid.New()},
			}},
			code: CodeInvalidReference,
		},
		{
			name: "bad status",
			req: CreateRequest{
				Status: ptr("archived"),
				Line:   &LineInput{AccountID: f.account, AmountMinor: -100},
			},
			code: CodeInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.budget, tt.req)
			wantCode(t, err, tt.code)
		})
	}
}

func TestCreateImportIDConflict(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, CreateRequest{
		ImportID: ptr("bank-001"),
		Line:     &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	_, err := f.svc.Create(context.Background(), f.budget, CreateRequest{
		ImportID: ptr("bank-001"),
		Line:     &LineInput{AccountID: f.account, AmountMinor: -200},
	})
	wantCode(t, err, CodeConflict)

	// Same import_id in a different budget is fine.
	otherBudget := f.store.SeedBudget("USD")
	otherAccount := f.store.SeedAccount(otherBudget, "USD")
	if _, err := f.svc.Create(context.Background(), otherBudget, CreateRequest{
		ImportID: ptr("bank-001"),
		Line:     &LineInput{AccountID: otherAccount, AmountMinor: -200},
	}); err != nil {
		t.Fatalf("cross-budget import_id rejected: %v", err)
	}
}

// raceStore simulates a concurrent writer landing the same import_id between
// the pre-insert check and the write transaction: the check sees nothing, but
// the insert trips the unique constraint.
type raceStore struct {
	*MemoryStore
}

func (s *raceStore) Begin(ctx context.Context) (Tx, error) {
	return raceTx{}, nil
}

type raceTx struct{ Tx }

func (raceTx) Rollback(ctx context.Context) error { return nil }

func (raceTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "uq_transactions_budget_import_id"}
}

func TestCreateImportIDRace(t *testing.T) {
	f := newFixture(t)
	svc := NewService(&raceStore{f.store})

	_, err := svc.Create(context.Background(), f.budget, CreateRequest{
		ImportID: ptr("bank-001"),
		Line:     &LineInput{AccountID: f.account, AmountMinor: -100},
	})
	wantCode(t, err, CodeConflict)
}

func TestCreateTransfer(t *testing.T) {
	f := newFixture(t)
	to := f.store.SeedAccount(f.budget, "USD")

	txn, err := f.svc.CreateTransfer(context.Background(), f.budget, TransferRequest{
		FromAccountID: f.account,
		ToAccountID:   to,
		AmountMinor:   500,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	if len(txn.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(txn.Lines))
	}
	var sum int64
	amounts := map[uuid.UUID]int64{}
	for _, line := range txn.Lines {
		sum += line.AmountMinor
		amounts[line.AccountID] = line.AmountMinor
		if line.CategoryID != nil || line.PayeeID != nil {
			t.Errorf("transfer line carries category or payee")
		}
	}
	if sum != 0 {
		t.Errorf("lines sum to %d, want 0", sum)
	}
	if amounts[f.account] != -500 || amounts[to] != 500 {
		t.Errorf("amounts = %v, want -500 from, +500 to", amounts)
	}
	if shape, _ := Classify(txn.Lines); shape != ShapeTransfer {
		t.Errorf("shape = %v, want transfer", shape)
	}
}

func TestCreateTransferRejections(t *testing.T) {
	f := newFixture(t)
	to := f.store.SeedAccount(f.budget, "USD")
	eurAccount := f.store.SeedAccount(f.budget, "EUR")
	category := f.store.SeedCategory(f.budget)
	payee := f.store.SeedPayee(f.budget)

	tests := []struct {
		name string
		req  TransferRequest
		code Code
	}{
		{
			name: "category supplied",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: to, AmountMinor: 500, CategoryID: &category},
			code: CodeInvalidShape,
		},
		{
			name: "payee supplied",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: to, AmountMinor: 500, PayeeID: &payee},
			code: CodeInvalidShape,
		},
		{
			name: "same account",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: f.account, AmountMinor: 500},
			code: CodeInvalidShape,
		},
		{
			name: "zero amount",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: to, AmountMinor: 0},
			code: CodeInvalidShape,
		},
		{
			name: "unknown account",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: uuid.New(), AmountMinor: 500},
			code: CodeInvalidReference,
		},
		{
			name: "non-base currency account",
			req:  TransferRequest{FromAccountID: f.account, ToAccountID: eurAccount, AmountMinor: 500},
			code: CodeInvalidReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransfer(context.Background(), f.budget, tt.req)
			wantCode(t, err, tt.code)
		})
	}
}

func TestGetWrongBudget(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	otherBudget := f.store.SeedBudget("USD")
	_, err := f.svc.Get(context.Background(), otherBudget, txn.ID, true)
	wantCode(t, err, CodeNotFound)
}

func TestListOrdering(t *testing.T) {
	f := newFixture(t)
	older := mustTimestamp(t, "2025-01-01T00:00:00Z")
	newer := mustTimestamp(t, "2025-06-01T00:00:00Z")

	first := f.mustCreate(t, CreateRequest{
		PostedAt: &older,
		Line:     &LineInput{AccountID: f.account, AmountMinor: -100},
	})
	second := f.mustCreate(t, CreateRequest{
		PostedAt: &newer,
		Line:     &LineInput{AccountID: f.account, AmountMinor: -200},
	})

	items, err := f.svc.List(context.Background(), f.budget, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Errorf("list not ordered by posted_at desc")
	}
	if items[0].Lines != nil {
		t.Errorf("lines included without include_lines")
	}
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Notes: ptr("before"),
		Line:  &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	posted := mustTimestamp(t, "2025-03-01T12:00:00Z")
	updated, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		PostedAt: Optional[Timestamp]{Set: true, Valid: true, Value: posted},
		Status:   Optional[string]{Set: true, Valid: true, Value: "reconciled"},
		Notes:    Optional[string]{Set: true, Valid: false},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if !updated.PostedAt.Equal(posted.Time) {
		t.Errorf("posted_at = %v, want %v", updated.PostedAt, posted.Time)
	}
	if updated.Status != StatusReconciled {
		t.Errorf("status = %s, want reconciled", updated.Status)
	}
	if updated.Notes != nil {
		t.Errorf("notes = %v, want cleared", *updated.Notes)
	}
}

func TestUpdateNoFields(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	_, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{})
	wantCode(t, err, CodeInvalidOperation)
}

func TestUpdateImportIDRules(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	// First assignment is allowed.
	updated, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		ImportID: Optional[string]{Set: true, Valid: true, Value: "bank-042"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ImportID == nil || *updated.ImportID != "bank-042" {
		t.Fatalf("import_id not set")
	}

	// Changing it afterwards is not.
	_, err = f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		ImportID: Optional[string]{Set: true, Valid: true, Value: "bank-043"},
	})
	wantCode(t, err, CodeInvalidOperation)

	// Neither is clearing it.
	_, err = f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		ImportID: Optional[string]{Set: true, Valid: false},
	})
	wantCode(t, err, CodeInvalidOperation)

	// Assigning a value another transaction holds conflicts.
	other := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -200},
	})
	_, err = f.svc.Update(context.Background(), f.budget, other.ID, UpdateRequest{
		ImportID: Optional[string]{Set: true, Valid: true, Value: "bank-042"},
	})
	wantCode(t, err, CodeConflict)
}

func TestUpdateLineEdits(t *testing.T) {
	f := newFixture(t)
	category := f.store.SeedCategory(f.budget)
	tag := f.store.SeedTag(f.budget)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, CategoryID: &category, AmountMinor: -100},
	})
	lineID := txn.Lines[0].ID

	updated, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		Lines: Optional[[]LineEdit]{Set: true, Valid: true, Value: []LineEdit{{
			LineID:      lineID,
			CategoryID:  Optional[uuid.UUID]{Set: true, Valid: false},
			AmountMinor: Optional[int64]{Set: true, Valid: true, Value: -250},
			Memo:        Optional[string]{Set: true, Valid: true, Value: "revised"},
			TagIDs:      Optional[[]uuid.UUID]{Set: true, Valid: true, Value: []uuid.UUID{tag}},
		}}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	line := updated.Lines[0]
	if line.CategoryID != nil {
		t.Errorf("category not cleared")
	}
	if line.AmountMinor != -250 {
		t.Errorf("amount = %d, want -250", line.AmountMinor)
	}
	if line.Memo == nil || *line.Memo != "revised" {
		t.Errorf("memo not updated")
	}
	if len(line.TagIDs) != 1 || line.TagIDs[0] != tag {
		t.Errorf("tags = %v, want [%s]", line.TagIDs, tag)
	}
}

func TestUpdateLineEditRejections(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Notes: ptr("original"),
		Line:  &LineInput{AccountID: f.account, AmountMinor: -100},
	})
	lineID := txn.Lines[0].ID

	tests := []struct {
		name  string
		edits []LineEdit
		code  Code
	}{
		{
			name:  "unknown line id",
			edits: []LineEdit{{LineID: uuid.New()}},
			code:  CodeInvalidLineEdit,
		},
		{
			name: "duplicate line id",
			edits: []LineEdit{
				{LineID: lineID, Memo: Optional[string]{Set: true, Valid: true, Value: "a"}},
				{LineID: lineID, Memo: Optional[string]{Set: true, Valid: true, Value: "b"}},
			},
			code: CodeInvalidLineEdit,
		},
		{
			name:  "zero amount",
			edits: []LineEdit{{LineID: lineID, AmountMinor: Optional[int64]{Set: true, Valid: true, Value: 0}}},
			code:  CodeInvalidShape,
		},
		{
			name:  "null amount",
			edits: []LineEdit{{LineID: lineID, AmountMinor: Optional[int64]{Set: true}}},
			code:  CodeInvalidShape,
		},
		{
			name:  "null account",
			edits: []LineEdit{{LineID: lineID, AccountID: Optional[uuid.UUID]{Set: true}}},
			code:  CodeInvalidReference,
		},
		{
			name:  "unknown account",
			edits: []LineEdit{{LineID: lineID, AccountID: Optional[uuid.UUID]{Set: true, Valid: true, Value: uuid.New()}}},
			code:  CodeInvalidReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
				Notes: Optional[string]{Set: true, Valid: true, Value: "should not land"},
				Lines: Optional[[]LineEdit]{Set: true, Valid: true, Value: tt.edits},
			})
			wantCode(t, err, tt.code)

			// The failed update must not leave partial writes behind.
			current, gerr := f.svc.Get(context.Background(), f.budget, txn.ID, true)
			if gerr != nil {
				t.Fatalf("Get: %v", gerr)
			}
			if current.Notes == nil || *current.Notes != "original" {
				t.Errorf("partial write: notes = %v", current.Notes)
			}
		})
	}
}

func TestUpdateSiblingLineID(t *testing.T) {
	f := newFixture(t)
	target := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})
	sibling := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -200},
	})

	_, err := f.svc.Update(context.Background(), f.budget, target.ID, UpdateRequest{
		Lines: Optional[[]LineEdit]{Set: true, Valid: true, Value: []LineEdit{{
			LineID:      sibling.Lines[0].ID,
			AmountMinor: Optional[int64]{Set: true, Valid: true, Value: -999},
		}}},
	})
	wantCode(t, err, CodeInvalidLineEdit)

	// Neither transaction may have been touched.
	for _, id := range []uuid.UUID{target.ID, sibling.ID} {
		current, gerr := f.svc.Get(context.Background(), f.budget, id, true)
		if gerr != nil {
			t.Fatalf("Get: %v", gerr)
		}
		if current.Lines[0].AmountMinor == -999 {
			t.Errorf("sibling edit leaked into transaction %s", id)
		}
	}
}

func TestUpdateReshape(t *testing.T) {
	f := newFixture(t)
	to := f.store.SeedAccount(f.budget, "USD")
	txn, err := f.svc.CreateTransfer(context.Background(), f.budget, TransferRequest{
		FromAccountID: f.account,
		ToAccountID:   to,
		AmountMinor:   500,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	var fromLine, toLine Line
	for _, line := range txn.Lines {
		if line.AccountID == f.account {
			fromLine = line
		} else {
			toLine = line
		}
	}

	// Breaking the balance leaves neither a transfer nor a non-transfer.
	_, err = f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		Lines: Optional[[]LineEdit]{Set: true, Valid: true, Value: []LineEdit{{
			LineID:      toLine.ID,
			AmountMinor: Optional[int64]{Set: true, Valid: true, Value: 400},
		}}},
	})
	wantCode(t, err, CodeInvalidShape)

	// Moving both lines onto one account reshapes transfer into non-transfer.
	updated, err := f.svc.Update(context.Background(), f.budget, txn.ID, UpdateRequest{
		Lines: Optional[[]LineEdit]{Set: true, Valid: true, Value: []LineEdit{{
			LineID:    fromLine.ID,
			AccountID: Optional[uuid.UUID]{Set: true, Valid: true, Value: toLine.AccountID},
		}}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if shape, _ := Classify(updated.Lines); shape != ShapeNonTransfer {
		t.Errorf("shape = %v, want non-transfer", shape)
	}
}

func TestSplit(t *testing.T) {
	f := newFixture(t)
	category := f.store.SeedCategory(f.budget)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -1000},
	})

	updated, err := f.svc.Split(context.Background(), f.budget, txn.ID, SplitRequest{
		Lines: []LineInput{
			{AccountID: f.account, CategoryID: &category, AmountMinor: -600},
			{AccountID: f.account, AmountMinor: -400, Memo: ptr("rest")},
		},
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if len(updated.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(updated.Lines))
	}
	var total int64
	for _, line := range updated.Lines {
		total += line.AmountMinor
		if line.AccountID != f.account {
			t.Errorf("line moved off the transaction's account")
		}
	}
	if total != -1000 {
		t.Errorf("total = %d, want -1000", total)
	}
}

func TestSplitRejections(t *testing.T) {
	f := newFixture(t)
	other := f.store.SeedAccount(f.budget, "USD")
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -1000},
	})

	_, err := f.svc.Split(context.Background(), f.budget, txn.ID, SplitRequest{})
	wantCode(t, err, CodeInvalidShape)

	_, err = f.svc.Split(context.Background(), f.budget, txn.ID, SplitRequest{
		Lines: []LineInput{{AccountID: other, AmountMinor: -1000}},
	})
	wantCode(t, err, CodeInvalidOperation)

	_, err = f.svc.Split(context.Background(), f.budget, txn.ID, SplitRequest{
		Lines: []LineInput{{AccountID: f.account, AmountMinor: 0}},
	})
	wantCode(t, err, CodeInvalidShape)

	transfer, terr := f.svc.CreateTransfer(context.Background(), f.budget, TransferRequest{
		FromAccountID: f.account,
		ToAccountID:   other,
		AmountMinor:   500,
	})
	if terr != nil {
		t.Fatalf("CreateTransfer: %v", terr)
	}
	_, err = f.svc.Split(context.Background(), f.budget, transfer.ID, SplitRequest{
		Lines: []LineInput{{AccountID: f.account, AmountMinor: -500}},
	})
	wantCode(t, err, CodeInvalidOperation)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	otherBudget := f.store.SeedBudget("USD")
	err := f.svc.Delete(context.Background(), otherBudget, txn.ID)
	wantCode(t, err, CodeNotFound)

	if err := f.svc.Delete(context.Background(), f.budget, txn.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = f.svc.Get(context.Background(), f.budget, txn.ID, true)
	wantCode(t, err, CodeNotFound)
}

func mustTimestamp(t *testing.T, s string) Timestamp {
	t.Helper()
	var ts Timestamp
	if err := ts.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}
