package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func importItem(account uuid.UUID, importID string, amount int64) CreateRequest {
	return CreateRequest{
		ImportID: ptr(importID),
		Line:     &LineInput{AccountID: account, AmountMinor: amount},
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Import(context.Background(), f.budget, ImportRequest{
		Transactions: []CreateRequest{
			importItem(f.account, "row-1", -100),
			importItem(f.account, "row-2", -200),
		},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.CreatedCount != 2 || result.ExistingCount != 0 {
		t.Fatalf("result = %+v, want 2 created, 0 existing", result)
	}

	items, err := f.svc.List(context.Background(), f.budget, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stored = %d, want 2", len(items))
	}
}

func TestImportReplay(t *testing.T) {
	f := newFixture(t)
	batch := ImportRequest{
		Transactions: []CreateRequest{
			importItem(f.account, "row-1", -100),
			importItem(f.account, "row-2", -200),
		},
	}

	if _, err := f.svc.Import(context.Background(), f.budget, batch); err != nil {
		t.Fatalf("first import: %v", err)
	}
	result, err := f.svc.Import(context.Background(), f.budget, batch)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.CreatedCount != 0 || result.ExistingCount != 2 {
		t.Fatalf("replay result = %+v, want 0 created, 2 existing", result)
	}

	items, err := f.svc.List(context.Background(), f.budget, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stored = %d after replay, want 2", len(items))
	}
}

func TestImportPartialOverlap(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Import(context.Background(), f.budget, ImportRequest{
		Transactions: []CreateRequest{importItem(f.account, "row-1", -100)},
	}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	result, err := f.svc.Import(context.Background(), f.budget, ImportRequest{
		Transactions: []CreateRequest{
			importItem(f.account, "row-1", -100),
			importItem(f.account, "row-2", -200),
		},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.CreatedCount != 1 || result.ExistingCount != 1 {
		t.Fatalf("result = %+v, want 1 created, 1 existing", result)
	}
}

func TestImportValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Import(context.Background(), f.budget, ImportRequest{})
	wantCode(t, err, CodeInvalidOperation)

	// Any invalid item rejects the batch with per-index reasons and no writes.
	badAccount := uuid.New()
	_, err = f.svc.Import(context.Background(), f.budget, ImportRequest{
		Transactions: []CreateRequest{
			importItem(f.account, "row-1", -100),
			importItem(badAccount, "row-2", -200),
			{Line: &LineInput{AccountID: f.account, AmountMinor: -300}},
		},
	})
	lerr := wantCode(t, err, CodeInvalidBatch)
	if len(lerr.Failures) != 2 {
		t.Fatalf("failures = %v, want entries for indexes 1 and 2", lerr.Failures)
	}
	if _, ok := lerr.Failures[1]; !ok {
		t.Errorf("missing failure for bad account item")
	}
	if _, ok := lerr.Failures[2]; !ok {
		t.Errorf("missing failure for item without import_id")
	}

	items, listErr := f.svc.List(context.Background(), f.budget, false)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(items) != 0 {
		t.Fatalf("rejected batch wrote %d transactions", len(items))
	}
}

func TestImportDuplicateWithinBatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Import(context.Background(), f.budget, ImportRequest{
		Transactions: []CreateRequest{
			importItem(f.account, "row-1", -100),
			importItem(f.account, "row-1", -200),
		},
	})
	wantCode(t, err, CodeDuplicateImportID)

	items, listErr := f.svc.List(context.Background(), f.budget, false)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(items) != 0 {
		t.Fatalf("duplicate batch wrote %d transactions", len(items))
	}
}
