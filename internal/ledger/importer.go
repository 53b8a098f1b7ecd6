package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Import creates a batch of single-line transactions keyed by import_id.
// Items whose import_id already exists in the budget are skipped, so
// replaying the same batch is a no-op. The batch is all-or-nothing: any
// invalid item rejects the whole request before a single row is written.
func (s *Service) Import(ctx context.Context, budgetID uuid.UUID, req ImportRequest) (*ImportResult, error) {
	if len(req.Transactions) == 0 {
		return nil, invalidOperation("no transactions to import")
	}

	refs := newRefResolver(s.store, budgetID)
	built := make([]*Transaction, len(req.Transactions))
	failures := make(map[int]string)

	for i, item := range req.Transactions {
		if item.ImportID == nil {
			failures[i] = "import_id is required"
			continue
		}
		txn, err := s.buildCreate(ctx, refs, budgetID, item)
		if err != nil {
			var lerr *Error
			if errors.As(err, &lerr) {
				failures[i] = lerr.Message
				continue
			}
			return nil, err
		}
		built[i] = txn
	}
	if len(failures) > 0 {
		return nil, invalidBatch(failures)
	}

	importIDs := make([]string, 0, len(built))
	seen := make(map[string]struct{}, len(built))
	for _, txn := range built {
		id := *txn.ImportID
		if _, dup := seen[id]; dup {
			return nil, duplicateImportID("duplicate import_id in batch: " + id)
		}
		seen[id] = struct{}{}
		importIDs = append(importIDs, id)
	}

	existing, err := s.store.ExistingImportIDs(ctx, budgetID, importIDs)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{ExistingCount: len(existing)}
	if result.ExistingCount == len(built) {
		return result, nil
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, txn := range built {
		if _, skip := existing[*txn.ImportID]; skip {
			continue
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return nil, mapImportIDViolation(err)
		}
		result.CreatedCount++
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapImportIDViolation(err)
	}
	return result, nil
}
