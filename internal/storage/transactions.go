package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/core"
)

const transactionColumns = `id, user_id, account_id, category_id, amount, direction,
	txn_date, txn_time, description, transfer_id, paired_transaction_id, created_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		direction  string
		transferID sql.NullString
		pairedID   sql.NullString
		createdAt  int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Amount, &direction,
		&t.Date, &t.Time, &t.Description, &transferID, &pairedID, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Direction = core.Direction(direction)
	t.TransferID = transferID.String
	t.PairedTransactionID = pairedID.String
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Amount, string(t.Direction),
		t.Date, t.Time, t.Description, nullString(t.TransferID), nullString(t.PairedTransactionID),
		t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites the mutable fields of a transaction. Transfer
// linkage is never changed here.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.exec(ctx, `UPDATE transactions SET
		account_id = ?, category_id = ?, amount = ?, direction = ?,
		txn_date = ?, txn_time = ?, description = ?
		WHERE id = ? AND user_id = ?`,
		t.AccountID, t.CategoryID, t.Amount, string(t.Direction),
		t.Date, t.Time, t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, notFound(err))
	}
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, notFound(err))
	}
	return t, nil
}

// ListTransactions returns the account's full ledger, oldest first.
func (q *Queries) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := q.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? ORDER BY txn_date, txn_time, created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of account %s: %w", accountID, err)
	}
	return collect(rows, scanTransaction, "transaction")
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, notFound(err))
	}
	return nil
}
