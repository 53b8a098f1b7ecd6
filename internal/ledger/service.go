package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Service orchestrates transaction mutations. Every write validates the full
// proposed aggregate first, then applies it inside one storage transaction,
// so a malformed line set is never persisted even partially.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create inserts a new single-line, non-transfer transaction.
func (s *Service) Create(ctx context.Context, budgetID uuid.UUID, req CreateRequest) (*Transaction, error) {
	refs := newRefResolver(s.store, budgetID)
	txn, err := s.buildCreate(ctx, refs, budgetID, req)
	if err != nil {
		return nil, err
	}
	if txn.ImportID != nil {
		taken, err := s.store.ImportIDTaken(ctx, budgetID, *txn.ImportID, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflict("import_id is already in use")
		}
	}
	if err := s.insertOne(ctx, txn); err != nil {
		return nil, err
	}
	return s.reload(ctx, txn.ID)
}

// buildCreate validates a create payload and assembles the aggregate without
// touching storage. The bulk importer reuses it per item.
func (s *Service) buildCreate(ctx context.Context, refs *refResolver, budgetID uuid.UUID, req CreateRequest) (*Transaction, error) {
	if req.Line == nil {
		return nil, invalidOperation("line is required")
	}
	line := *req.Line

	if line.AmountMinor == 0 {
		return nil, invalidShape("amount must be non-zero")
	}
	if err := checkMemo(line.Memo); err != nil {
		return nil, err
	}

	status, err := resolveStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := checkNotes(req.Notes); err != nil {
		return nil, err
	}
	if err := checkImportID(req.ImportID); err != nil {
		return nil, err
	}

	if _, err := refs.requireAccount(ctx, line.AccountID); err != nil {
		return nil, err
	}
	if line.CategoryID != nil {
		if err := refs.requireCategory(ctx, *line.CategoryID); err != nil {
			return nil, err
		}
	}
	if line.PayeeID != nil {
		if err := refs.requirePayee(ctx, *line.PayeeID); err != nil {
			return nil, err
		}
	}
	tagIDs, err := refs.requireTags(ctx, line.TagIDs)
	if err != nil {
		return nil, err
	}

	txnID := uuid.New()
	built := &Transaction{
		ID:       txnID,
		BudgetID: budgetID,
		PostedAt: normalizePostedAt(req.PostedAt),
		Status:   status,
		Notes:    req.Notes,
		ImportID: req.ImportID,
		Lines: []Line{{
			ID:            uuid.New(),
			TransactionID: txnID,
			AccountID:     line.AccountID,
			CategoryID:    line.CategoryID,
			PayeeID:       line.PayeeID,
			AmountMinor:   line.AmountMinor,
			Memo:          line.Memo,
			TagIDs:        tagIDs,
		}},
	}

	// A fresh transaction can only ever start as a non-transfer.
	if shape, reason := Classify(built.Lines); shape != ShapeNonTransfer {
		return nil, invalidShape(string(reason))
	}
	return built, nil
}

// CreateTransfer is the only path that creates a transfer: two balanced
// lines between distinct accounts, no category, no payee.
func (s *Service) CreateTransfer(ctx context.Context, budgetID uuid.UUID, req TransferRequest) (*Transaction, error) {
	if req.CategoryID != nil {
		return nil, invalidShape("transfer lines cannot carry a category")
	}
	if req.PayeeID != nil {
		return nil, invalidShape("transfer lines cannot carry a payee")
	}
	if req.AmountMinor == 0 {
		return nil, invalidShape("amount must be non-zero")
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, invalidShape("transfer requires two distinct accounts")
	}
	if err := checkMemo(req.Memo); err != nil {
		return nil, err
	}

	status, err := resolveStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := checkNotes(req.Notes); err != nil {
		return nil, err
	}

	refs := newRefResolver(s.store, budgetID)
	from, err := refs.requireAccount(ctx, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := refs.requireAccount(ctx, req.ToAccountID)
	if err != nil {
		return nil, err
	}

	base, err := s.store.BudgetBaseCurrency(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if from.CurrencyCode != base || to.CurrencyCode != base {
		return nil, invalidReference("transfer accounts must use the budget's base currency")
	}

	txnID := uuid.New()
	txn := &Transaction{
		ID:       txnID,
		BudgetID: budgetID,
		PostedAt: normalizePostedAt(req.PostedAt),
		Status:   status,
		Notes:    req.Notes,
		Lines: []Line{
			{
				ID:            uuid.New(),
				TransactionID: txnID,
				AccountID:     req.FromAccountID,
				AmountMinor:   -req.AmountMinor,
				Memo:          req.Memo,
			},
			{
				ID:            uuid.New(),
				TransactionID: txnID,
				AccountID:     req.ToAccountID,
				AmountMinor:   req.AmountMinor,
				Memo:          req.Memo,
			},
		},
	}

	if shape, reason := Classify(txn.Lines); shape != ShapeTransfer {
		return nil, invalidShape(string(reason))
	}
	if err := s.insertOne(ctx, txn); err != nil {
		return nil, err
	}
	return s.reload(ctx, txn.ID)
}

func (s *Service) Get(ctx context.Context, budgetID, transactionID uuid.UUID, includeLines bool) (*Transaction, error) {
	txn, err := s.store.Transaction(ctx, transactionID, includeLines)
	if err != nil {
		return nil, err
	}
	if txn == nil || txn.BudgetID != budgetID {
		return nil, notFound("transaction not found")
	}
	return txn, nil
}

func (s *Service) List(ctx context.Context, budgetID uuid.UUID, includeLines bool) ([]Transaction, error) {
	return s.store.Transactions(ctx, budgetID, includeLines)
}

// Update edits transaction fields and existing lines in place. It never adds
// or removes lines; the merged result must still classify cleanly or the
// whole update is rejected with no partial write.
func (s *Service) Update(ctx context.Context, budgetID, transactionID uuid.UUID, req UpdateRequest) (*Transaction, error) {
	txn, err := s.Get(ctx, budgetID, transactionID, true)
	if err != nil {
		return nil, err
	}

	if !req.PostedAt.Set && !req.Status.Set && !req.Notes.Set && !req.ImportID.Set && !req.Lines.Set {
		return nil, invalidOperation("no fields to update")
	}

	patch, err := buildFieldPatch(txn, req)
	if err != nil {
		return nil, err
	}
	if patch.ImportID != nil {
		taken, err := s.store.ImportIDTaken(ctx, budgetID, *patch.ImportID, txn.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflict("import_id is already in use")
		}
	}

	if req.Lines.Set && !req.Lines.Valid {
		return nil, invalidLineEdit("lines cannot be null")
	}
	edits := req.Lines.Value
	if req.Lines.Set && len(edits) == 0 {
		return nil, invalidLineEdit("no line edits provided")
	}

	merged := make([]Line, len(txn.Lines))
	copy(merged, txn.Lines)
	byID := make(map[uuid.UUID]*Line, len(merged))
	for i := range merged {
		byID[merged[i].ID] = &merged[i]
	}

	refs := newRefResolver(s.store, budgetID)
	var linePatches []LinePatch
	tagReplacements := make(map[uuid.UUID][]uuid.UUID)

	seen := make(map[uuid.UUID]struct{}, len(edits))
	for _, edit := range edits {
		if _, dup := seen[edit.LineID]; dup {
			return nil, invalidLineEdit("duplicate line_id")
		}
		seen[edit.LineID] = struct{}{}

		snapshot, ok := byID[edit.LineID]
		if !ok {
			return nil, invalidLineEdit("line not found")
		}

		lp, tagIDs, err := s.applyLineEdit(ctx, refs, snapshot, edit)
		if err != nil {
			return nil, err
		}
		if tagIDs != nil {
			tagReplacements[edit.LineID] = *tagIDs
		}
		if !lp.Empty() {
			linePatches = append(linePatches, lp)
		}
	}

	if patch.Empty() && len(linePatches) == 0 && len(tagReplacements) == 0 {
		return nil, invalidOperation("no fields to update")
	}

	if shape, reason := Classify(merged); shape == ShapeInvalid {
		return nil, invalidShape(string(reason))
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if !patch.Empty() {
		if err := tx.UpdateTransactionFields(ctx, txn.ID, patch); err != nil {
			return nil, mapImportIDViolation(err)
		}
	}
	for _, lp := range linePatches {
		if err := tx.UpdateLine(ctx, lp); err != nil {
			return nil, err
		}
	}
	for lineID, tagIDs := range tagReplacements {
		if err := tx.ReplaceLineTags(ctx, lineID, tagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapImportIDViolation(err)
	}

	return s.reload(ctx, txn.ID)
}

// applyLineEdit validates one line edit, mutates the in-memory snapshot used
// for reclassification, and returns the storage patch. The returned tag
// slice is non-nil when the edit replaces the line's tags.
func (s *Service) applyLineEdit(ctx context.Context, refs *refResolver, snapshot *Line, edit LineEdit) (LinePatch, *[]uuid.UUID, error) {
	patch := LinePatch{LineID: edit.LineID}
	var tagIDs *[]uuid.UUID

	if edit.AccountID.Set {
		if !edit.AccountID.Valid {
			return patch, nil, invalidReference("account not found")
		}
		if _, err := refs.requireAccount(ctx, edit.AccountID.Value); err != nil {
			return patch, nil, err
		}
		snapshot.AccountID = edit.AccountID.Value
		patch.AccountID = edit.AccountID.Ptr()
	}

	if edit.CategoryID.Set {
		if edit.CategoryID.Valid {
			if err := refs.requireCategory(ctx, edit.CategoryID.Value); err != nil {
				return patch, nil, err
			}
		}
		snapshot.CategoryID = edit.CategoryID.Ptr()
		patch.CategoryID = edit.CategoryID
	}

	if edit.PayeeID.Set {
		if edit.PayeeID.Valid {
			if err := refs.requirePayee(ctx, edit.PayeeID.Value); err != nil {
				return patch, nil, err
			}
		}
		snapshot.PayeeID = edit.PayeeID.Ptr()
		patch.PayeeID = edit.PayeeID
	}

	if edit.AmountMinor.Set {
		if !edit.AmountMinor.Valid || edit.AmountMinor.Value == 0 {
			return patch, nil, invalidShape("amount must be non-zero")
		}
		snapshot.AmountMinor = edit.AmountMinor.Value
		patch.AmountMinor = edit.AmountMinor.Ptr()
	}

	if edit.Memo.Set {
		if err := checkMemo(edit.Memo.Ptr()); err != nil {
			return patch, nil, err
		}
		snapshot.Memo = edit.Memo.Ptr()
		patch.Memo = edit.Memo
	}

	if edit.TagIDs.Set {
		deduped, err := refs.requireTags(ctx, edit.TagIDs.Value)
		if err != nil {
			return patch, nil, err
		}
		if deduped == nil {
			deduped = []uuid.UUID{}
		}
		snapshot.TagIDs = deduped
		tagIDs = &deduped
	}

	return patch, tagIDs, nil
}

// Split replaces a non-transfer transaction's lines wholesale. Transfers can
// never be split, and every new line must stay on the transaction's account.
func (s *Service) Split(ctx context.Context, budgetID, transactionID uuid.UUID, req SplitRequest) (*Transaction, error) {
	txn, err := s.Get(ctx, budgetID, transactionID, true)
	if err != nil {
		return nil, err
	}
	if shape, _ := Classify(txn.Lines); shape == ShapeTransfer {
		return nil, invalidOperation("transfers cannot be split")
	}
	if len(txn.Lines) == 0 {
		return nil, invalidOperation("transaction has no lines")
	}
	if len(req.Lines) == 0 {
		return nil, invalidShape("split requires at least one line")
	}

	accountID := txn.Lines[0].AccountID
	refs := newRefResolver(s.store, budgetID)

	replacement := make([]Line, 0, len(req.Lines))
	for _, input := range req.Lines {
		if input.AccountID != accountID {
			return nil, invalidOperation("split lines must keep the transaction's account")
		}
		if input.AmountMinor == 0 {
			return nil, invalidShape("amount must be non-zero")
		}
		if err := checkMemo(input.Memo); err != nil {
			return nil, err
		}
		if input.CategoryID != nil {
			if err := refs.requireCategory(ctx, *input.CategoryID); err != nil {
				return nil, err
			}
		}
		if input.PayeeID != nil {
			if err := refs.requirePayee(ctx, *input.PayeeID); err != nil {
				return nil, err
			}
		}
		tagIDs, err := refs.requireTags(ctx, input.TagIDs)
		if err != nil {
			return nil, err
		}
		replacement = append(replacement, Line{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			AccountID:     input.AccountID,
			CategoryID:    input.CategoryID,
			PayeeID:       input.PayeeID,
			AmountMinor:   input.AmountMinor,
			Memo:          input.Memo,
			TagIDs:        tagIDs,
		})
	}

	if shape, reason := Classify(replacement); shape != ShapeNonTransfer {
		return nil, invalidShape(string(reason))
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	if err := tx.ReplaceLines(ctx, txn.ID, replacement); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.reload(ctx, txn.ID)
}

// Delete removes the transaction and all of its lines as one unit.
func (s *Service) Delete(ctx context.Context, budgetID, transactionID uuid.UUID) error {
	if _, err := s.Get(ctx, budgetID, transactionID, false); err != nil {
		return err
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.DeleteTransaction(ctx, transactionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) insertOne(ctx context.Context, txn *Transaction) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return mapImportIDViolation(err)
	}
	return mapImportIDViolation(tx.Commit(ctx))
}

func (s *Service) reload(ctx context.Context, transactionID uuid.UUID) (*Transaction, error) {
	txn, err := s.store.Transaction(ctx, transactionID, true)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, notFound("transaction not found")
	}
	return txn, nil
}

func buildFieldPatch(txn *Transaction, req UpdateRequest) (FieldPatch, error) {
	var patch FieldPatch

	if req.PostedAt.Set {
		if !req.PostedAt.Valid || req.PostedAt.Value.IsZero() {
			return patch, invalidOperation("posted_at is required")
		}
		ts := Timestamp{Time: req.PostedAt.Value.UTC()}
		patch.PostedAt = &ts
	}

	if req.Status.Set {
		if !req.Status.Valid {
			return patch, invalidOperation("status is required")
		}
		status, err := resolveStatus(&req.Status.Value)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}

	if req.Notes.Set {
		if err := checkNotes(req.Notes.Ptr()); err != nil {
			return patch, err
		}
		patch.Notes = req.Notes
	}

	if req.ImportID.Set {
		next := req.ImportID.Ptr()
		if !sameImportID(txn.ImportID, next) {
			if txn.ImportID != nil {
				return patch, invalidOperation("import_id cannot be changed")
			}
			if err := checkImportID(next); err != nil {
				return patch, err
			}
			patch.ImportID = next
		}
	}

	return patch, nil
}

func sameImportID(current, next *string) bool {
	if current == nil || next == nil {
		return current == nil && next == nil
	}
	return *current == *next
}

func resolveStatus(raw *string) (Status, error) {
	if raw == nil {
		return StatusPosted, nil
	}
	if len(*raw) > maxStatusLen {
		return "", invalidOperation("invalid status")
	}
	status, ok := ParseStatus(*raw)
	if !ok {
		return "", invalidOperation("invalid status")
	}
	return status, nil
}

func checkNotes(notes *string) error {
	if notes != nil && len(*notes) > maxNotesLen {
		return invalidOperation("notes too long")
	}
	return nil
}

func checkMemo(memo *string) error {
	if memo != nil && len(*memo) > maxMemoLen {
		return invalidOperation("memo too long")
	}
	return nil
}

func checkImportID(importID *string) error {
	if importID == nil {
		return nil
	}
	if *importID == "" {
		return invalidOperation("import_id cannot be empty")
	}
	if len(*importID) > maxImportIDLen {
		return invalidOperation("import_id too long")
	}
	return nil
}
