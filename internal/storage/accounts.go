package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const accountColumns = `id, user_id, name, currency, kind, balance,
	debt_initial_amount, debt_creditor_name, debt_due_date, debt_notes,
	savings_interest_rate, savings_term_months, savings_start_date, savings_end_date,
	savings_auto_renewal, savings_withdrawal_allowed, savings_target_amount,
	savings_last_interest_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a            core.Account
		kind         string
		createdAt    int64
		debtInitial  decimal.NullDecimal
		debtCreditor sql.NullString
		debtDue      core.Date
		debtNotes    sql.NullString
		rate         decimal.NullDecimal
		termMonths   sql.NullInt64
		start, end   core.Date
		autoRenewal  sql.NullBool
		withdrawal   sql.NullBool
		target       decimal.NullDecimal
		lastInterest core.Date
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Currency, &kind, &a.Balance,
		&debtInitial, &debtCreditor, &debtDue, &debtNotes,
		&rate, &termMonths, &start, &end,
		&autoRenewal, &withdrawal, &target,
		&lastInterest, &createdAt,
	)
	if err != nil {
		return core.Account{}, err
	}

	a.Kind = core.AccountKind(kind)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	switch a.Kind {
	case core.KindDebt:
		a.Debt = &core.DebtTerms{
			InitialAmount: debtInitial.Decimal,
			CreditorName:  debtCreditor.String,
			DueDate:       debtDue,
			Notes:         debtNotes.String,
		}
	case core.KindSavings:
		a.Savings = &core.SavingsTerms{
			InterestRate:      rate.Decimal,
			DepositTermMonths: int(termMonths.Int64),
			DepositStartDate:  start,
			DepositEndDate:    end,
			AutoRenewal:       autoRenewal.Bool,
			WithdrawalAllowed: withdrawal.Bool,
			TargetAmount:      target.Decimal,
			LastInterestDate:  lastInterest,
		}
	}
	return a, nil
}

// accountArgs flattens the kind-specific terms into nullable columns.
func accountArgs(a core.Account) []any {
	var (
		debtInitial  decimal.NullDecimal
		debtCreditor sql.NullString
		debtDue      core.Date
		debtNotes    sql.NullString
		rate         decimal.NullDecimal
		termMonths   sql.NullInt64
		start, end   core.Date
		autoRenewal  sql.NullBool
		withdrawal   sql.NullBool
		target       decimal.NullDecimal
		lastInterest core.Date
	)
	if d := a.Debt; d != nil {
		debtInitial = decimal.NewNullDecimal(d.InitialAmount)
		debtCreditor = sql.NullString{String: d.CreditorName, Valid: true}
		debtDue = d.DueDate
		debtNotes = sql.NullString{String: d.Notes, Valid: d.Notes != ""}
	}
	if s := a.Savings; s != nil {
		rate = decimal.NewNullDecimal(s.InterestRate)
		termMonths = sql.NullInt64{Int64: int64(s.DepositTermMonths), Valid: true}
		start, end = s.DepositStartDate, s.DepositEndDate
		autoRenewal = sql.NullBool{Bool: s.AutoRenewal, Valid: true}
		withdrawal = sql.NullBool{Bool: s.WithdrawalAllowed, Valid: true}
		target = decimal.NewNullDecimal(s.TargetAmount)
		lastInterest = s.LastInterestDate
	}
	return []any{
		debtInitial, debtCreditor, debtDue, debtNotes,
		rate, termMonths, start, end,
		autoRenewal, withdrawal, target, lastInterest,
	}
}

// CreateAccount inserts a new account; Balance is stored as given.
func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	args := []any{a.ID, a.UserID, a.Name, a.Currency, string(a.Kind), a.Balance}
	args = append(args, accountArgs(a)...)
	args = append(args, a.CreatedAt.Unix())
	_, err := q.exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateAccountDetails rewrites the user-editable fields. Balance is left
// alone; it is only written through SetAccountBalance.
func (q *Queries) UpdateAccountDetails(ctx context.Context, a core.Account) error {
	args := []any{a.Name, a.Currency, string(a.Kind)}
	args = append(args, accountArgs(a)...)
	args = append(args, a.ID, a.UserID)
	res, err := q.exec(ctx, `UPDATE accounts SET
		name = ?, currency = ?, kind = ?,
		debt_initial_amount = ?, debt_creditor_name = ?, debt_due_date = ?, debt_notes = ?,
		savings_interest_rate = ?, savings_term_months = ?, savings_start_date = ?, savings_end_date = ?,
		savings_auto_renewal = ?, savings_withdrawal_allowed = ?, savings_target_amount = ?,
		savings_last_interest_date = ?
		WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, notFound(err))
	}
	return nil
}

// SetAccountBalance persists a reconciled balance.
func (q *Queries) SetAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	res, err := q.exec(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("set balance of account %s: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("set balance of account %s: %w", id, notFound(err))
	}
	return nil
}

// SetLastInterestDate records the day interest was last posted.
func (q *Queries) SetLastInterestDate(ctx context.Context, id string, day core.Date) error {
	res, err := q.exec(ctx, `UPDATE accounts SET savings_last_interest_date = ?
		WHERE id = ? AND kind = 'savings'`, day, id)
	if err != nil {
		return fmt.Errorf("set last interest date of account %s: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("set last interest date of account %s: %w", id, notFound(err))
	}
	return nil
}

// GetAccount loads one of the user's accounts.
func (q *Queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	row := q.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, notFound(err))
	}
	return a, nil
}

// LockAccounts loads the user's accounts for update. Rows are locked one at
// a time in ascending id order so that two transactions touching the same
// pair of accounts always acquire the locks in the same order.
func (q *Queries) LockAccounts(ctx context.Context, userID string, ids ...string) (map[string]core.Account, error) {
	sorted := uniqueSorted(ids)
	out := make(map[string]core.Account, len(sorted))
	for _, id := range sorted {
		row := q.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts
			WHERE id = ? AND user_id = ?`+q.dialect.LockClause, id, userID)
		a, err := scanAccount(row)
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, notFound(err))
		}
		out[id] = a
	}
	return out, nil
}

// ListAccounts returns the user's accounts ordered by creation.
func (q *Queries) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := q.query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return collect(rows, scanAccount, "account")
}

// ListSavingsAccounts returns savings accounts of every user. Rows that
// cannot be decoded are skipped.
func (q *Queries) ListSavingsAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE kind = 'savings' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list savings accounts: %w", err)
	}
	return collectReadable(ctx, rows, scanAccount, "account")
}

// DeleteAccount removes the account; its transactions cascade.
func (q *Queries) DeleteAccount(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("delete account %s: %w", id, notFound(err))
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
