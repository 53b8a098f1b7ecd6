package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the production Store, backed by a pgx pool.
type PgStore struct {
	Pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{Pool: pool}
}

func (s *PgStore) AccountRef(ctx context.Context, accountID uuid.UUID) (*AccountRef, error) {
	var ref AccountRef
	err := s.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, currency_code FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&ref.ID, &ref.BudgetID, &ref.CurrencyCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *PgStore) CategoryInBudget(ctx context.Context, budgetID, categoryID uuid.UUID) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND budget_id = $2)`,
		categoryID, budgetID,
	).Scan(&exists)
	return exists, err
}

func (s *PgStore) PayeeInBudget(ctx context.Context, budgetID, payeeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM payees WHERE id = $1 AND budget_id = $2)`,
		payeeID, budgetID,
	).Scan(&exists)
	return exists, err
}

func (s *PgStore) TagIDsInBudget(ctx context.Context, budgetID uuid.UUID, tagIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := s.Pool.Query(
		ctx,
		`SELECT id FROM tags WHERE budget_id = $1 AND id = ANY($2)`,
		budgetID, tagIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[uuid.UUID]struct{}, len(tagIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

func (s *PgStore) BudgetBaseCurrency(ctx context.Context, budgetID uuid.UUID) (string, error) {
	var code string
	err := s.Pool.QueryRow(
		ctx,
		`SELECT base_currency_code FROM budgets WHERE id = $1`,
		budgetID,
	).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", notFound("budget not found")
	}
	return code, err
}

func (s *PgStore) Transaction(ctx context.Context, transactionID uuid.UUID, includeLines bool) (*Transaction, error) {
	var txn Transaction
	err := s.Pool.QueryRow(
		ctx,
		`SELECT id, budget_id, posted_at, status, notes, import_id, created_at
		 FROM transactions
		 WHERE id = $1`,
		transactionID,
	).Scan(&txn.ID, &txn.BudgetID, &txn.PostedAt, &txn.Status, &txn.Notes, &txn.ImportID, &txn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	txn.PostedAt = txn.PostedAt.UTC()
	txn.CreatedAt = txn.CreatedAt.UTC()

	if includeLines {
		byTxn, err := s.loadLines(ctx, []uuid.UUID{txn.ID})
		if err != nil {
			return nil, err
		}
		txn.Lines = byTxn[txn.ID]
	}
	return &txn, nil
}

func (s *PgStore) Transactions(ctx context.Context, budgetID uuid.UUID, includeLines bool) ([]Transaction, error) {
	rows, err := s.Pool.Query(
		ctx,
		`SELECT id, budget_id, posted_at, status, notes, import_id, created_at
		 FROM transactions
		 WHERE budget_id = $1
		 ORDER BY posted_at DESC, created_at DESC, id DESC`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Transaction{}
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(&txn.ID, &txn.BudgetID, &txn.PostedAt, &txn.Status, &txn.Notes, &txn.ImportID, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.PostedAt = txn.PostedAt.UTC()
		txn.CreatedAt = txn.CreatedAt.UTC()
		items = append(items, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if includeLines && len(items) > 0 {
		ids := make([]uuid.UUID, len(items))
		for i, txn := range items {
			ids[i] = txn.ID
		}
		byTxn, err := s.loadLines(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Lines = byTxn[items[i].ID]
		}
	}
	return items, nil
}

func (s *PgStore) ImportIDTaken(ctx context.Context, budgetID uuid.UUID, importID string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM transactions
		     WHERE budget_id = $1 AND import_id = $2 AND id <> $3
		 )`,
		budgetID, importID, exclude,
	).Scan(&exists)
	return exists, err
}

func (s *PgStore) ExistingImportIDs(ctx context.Context, budgetID uuid.UUID, importIDs []string) (map[string]struct{}, error) {
	rows, err := s.Pool.Query(
		ctx,
		`SELECT import_id FROM transactions WHERE budget_id = $1 AND import_id = ANY($2)`,
		budgetID, importIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

func (s *PgStore) loadLines(ctx context.Context, transactionIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	rows, err := s.Pool.Query(
		ctx,
		`SELECT id, transaction_id, account_id, category_id, payee_id, amount_minor, memo
		 FROM transaction_lines
		 WHERE transaction_id = ANY($1)
		 ORDER BY id`,
		transactionIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.TransactionID, &line.AccountID, &line.CategoryID, &line.PayeeID, &line.AmountMinor, &line.Memo); err != nil {
			return nil, err
		}
		line.TagIDs = []uuid.UUID{}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byTxn := make(map[uuid.UUID][]Line)
	if len(lines) == 0 {
		return byTxn, nil
	}

	lineIDs := make([]uuid.UUID, len(lines))
	byLine := make(map[uuid.UUID]*Line, len(lines))
	for i := range lines {
		lineIDs[i] = lines[i].ID
		byLine[lines[i].ID] = &lines[i]
	}

	tagRows, err := s.Pool.Query(
		ctx,
		`SELECT line_id, tag_id
		 FROM transaction_line_tags
		 WHERE line_id = ANY($1)
		 ORDER BY line_id, tag_id`,
		lineIDs,
	)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var lineID, tagID uuid.UUID
		if err := tagRows.Scan(&lineID, &tagID); err != nil {
			return nil, err
		}
		if line, ok := byLine[lineID]; ok {
			line.TagIDs = append(line.TagIDs, tagID)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	for _, line := range lines {
		byTxn[line.TransactionID] = append(byTxn[line.TransactionID], line)
	}
	return byTxn, nil
}

func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	err := t.tx.QueryRow(
		ctx,
		`INSERT INTO transactions (id, budget_id, posted_at, status, notes, import_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		txn.ID, txn.BudgetID, txn.PostedAt, txn.Status, txn.Notes, txn.ImportID,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return err
	}
	for i := range txn.Lines {
		if err := t.insertLine(ctx, &txn.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) insertLine(ctx context.Context, line *Line) error {
	_, err := t.tx.Exec(
		ctx,
		`INSERT INTO transaction_lines (id, transaction_id, account_id, category_id, payee_id, amount_minor, memo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		line.ID, line.TransactionID, line.AccountID, line.CategoryID, line.PayeeID, line.AmountMinor, line.Memo,
	)
	if err != nil {
		return err
	}
	for _, tagID := range line.TagIDs {
		if _, err := t.tx.Exec(
			ctx,
			`INSERT INTO transaction_line_tags (line_id, tag_id) VALUES ($1, $2)`,
			line.ID, tagID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) UpdateTransactionFields(ctx context.Context, transactionID uuid.UUID, patch FieldPatch) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PostedAt != nil {
		add("posted_at", patch.PostedAt.UTC())
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Notes.Set {
		add("notes", patch.Notes.Ptr())
	}
	if patch.ImportID != nil {
		add("import_id", *patch.ImportID)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, transactionID)
	query := fmt.Sprintf(
		`UPDATE transactions SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args),
	)
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateLine(ctx context.Context, patch LinePatch) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.AccountID != nil {
		add("account_id", *patch.AccountID)
	}
	if patch.CategoryID.Set {
		add("category_id", patch.CategoryID.Ptr())
	}
	if patch.PayeeID.Set {
		add("payee_id", patch.PayeeID.Ptr())
	}
	if patch.AmountMinor != nil {
		add("amount_minor", *patch.AmountMinor)
	}
	if patch.Memo.Set {
		add("memo", patch.Memo.Ptr())
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, patch.LineID)
	query := fmt.Sprintf(
		`UPDATE transaction_lines SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args),
	)
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) ReplaceLineTags(ctx context.Context, lineID uuid.UUID, tagIDs []uuid.UUID) error {
	if _, err := t.tx.Exec(
		ctx,
		`DELETE FROM transaction_line_tags WHERE line_id = $1`,
		lineID,
	); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := t.tx.Exec(
			ctx,
			`INSERT INTO transaction_line_tags (line_id, tag_id) VALUES ($1, $2)`,
			lineID, tagID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) ReplaceLines(ctx context.Context, transactionID uuid.UUID, lines []Line) error {
	if _, err := t.tx.Exec(
		ctx,
		`DELETE FROM transaction_lines WHERE transaction_id = $1`,
		transactionID,
	); err != nil {
		return err
	}
	for i := range lines {
		if err := t.insertLine(ctx, &lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, transactionID)
	return err
}
