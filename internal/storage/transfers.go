package storage

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
)

const transferColumns = `id, user_id, from_account_id, to_account_id, from_leg_id, to_leg_id,
	amount, transfer_date, description, created_at`

func scanTransfer(row rowScanner) (core.Transfer, error) {
	var (
		t         core.Transfer
		createdAt int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.FromAccountID, &t.ToAccountID, &t.FromLegID, &t.ToLegID,
		&t.Amount, &t.Date, &t.Description, &createdAt)
	if err != nil {
		return core.Transfer{}, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return t, nil
}

// CreateTransfer inserts the transfer row. It must precede its legs, which
// reference it.
func (q *Queries) CreateTransfer(ctx context.Context, t core.Transfer) error {
	_, err := q.exec(ctx, `INSERT INTO transfers (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.FromAccountID, t.ToAccountID, t.FromLegID, t.ToLegID,
		t.Amount, t.Date, t.Description, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// UpdateTransfer rewrites accounts, amount, date and description. Leg ids
// never change.
func (q *Queries) UpdateTransfer(ctx context.Context, t core.Transfer) error {
	res, err := q.exec(ctx, `UPDATE transfers SET
		from_account_id = ?, to_account_id = ?, amount = ?, transfer_date = ?, description = ?
		WHERE id = ? AND user_id = ?`,
		t.FromAccountID, t.ToAccountID, t.Amount, t.Date, t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transfer %s: %w", t.ID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("update transfer %s: %w", t.ID, notFound(err))
	}
	return nil
}

func (q *Queries) GetTransfer(ctx context.Context, userID, id string) (core.Transfer, error) {
	t, err := scanTransfer(q.queryRow(ctx, `SELECT `+transferColumns+` FROM transfers
		WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Transfer{}, fmt.Errorf("get transfer %s: %w", id, notFound(err))
	}
	return t, nil
}

// ListTransfers returns the user's transfers, newest first.
func (q *Queries) ListTransfers(ctx context.Context, userID string) ([]core.Transfer, error) {
	rows, err := q.query(ctx, `SELECT `+transferColumns+` FROM transfers
		WHERE user_id = ? ORDER BY transfer_date DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return collect(rows, scanTransfer, "transfer")
}

// ListAccountTransfers returns every transfer touching the account on either side.
func (q *Queries) ListAccountTransfers(ctx context.Context, accountID string) ([]core.Transfer, error) {
	rows, err := q.query(ctx, `SELECT `+transferColumns+` FROM transfers
		WHERE from_account_id = ? OR to_account_id = ? ORDER BY id`, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transfers of account %s: %w", accountID, err)
	}
	return collect(rows, scanTransfer, "transfer")
}

// DeleteTransfer removes the transfer; both legs cascade with it.
func (q *Queries) DeleteTransfer(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM transfers WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transfer %s: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("delete transfer %s: %w", id, notFound(err))
	}
	return nil
}
