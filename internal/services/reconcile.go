package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// reconcile recomputes an account's balance from its stored transactions,
// enforces the kind-specific balance rule and persists the result. It must
// run inside the transaction that changed the ledger so that a failed check
// rolls the change back.
func reconcile(ctx context.Context, q *storage.Queries, a core.Account) (decimal.Decimal, error) {
	txns, err := q.ListTransactions(ctx, a.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile account %s: %w", a.ID, err)
	}
	balance := core.Recompute(a, txns)
	if err := core.CheckBalance(a, balance); err != nil {
		return decimal.Zero, err
	}
	if err := q.SetAccountBalance(ctx, a.ID, balance); err != nil {
		return decimal.Zero, fmt.Errorf("reconcile account %s: %w", a.ID, err)
	}
	return balance, nil
}

// reconcileAll reconciles accounts in ascending id order and returns the new
// balances keyed by id.
func reconcileAll(ctx context.Context, q *storage.Queries, accounts map[string]core.Account) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(accounts))
	for _, id := range sortedKeys(accounts) {
		balance, err := reconcile(ctx, q, accounts[id])
		if err != nil {
			return nil, err
		}
		out[id] = balance
	}
	return out, nil
}

// errMovedConcurrently is returned when a row keeps moving to other
// accounts while its accounts are being locked.
var errMovedConcurrently = errors.New("changed by a concurrent update")

const maxRelock = 3

// lockFor loads a row, locks the accounts it names together with extra, and
// loads it again under those locks. Every writer locks a row's current
// accounts before changing it, so once the reload names only locked accounts
// the row stays put until commit. A row that moved in between has its new
// accounts locked as well and is loaded once more.
func lockFor[T any](ctx context.Context, q *storage.Queries, userID string, load func() (T, error), accountsOf func(T) []string, extra ...string) (T, map[string]core.Account, error) {
	var zero T
	row, err := load()
	if err != nil {
		return zero, nil, err
	}
	locked := make(map[string]core.Account)
	want := append(accountsOf(row), extra...)
	for i := 0; i < maxRelock; i++ {
		more, err := q.LockAccounts(ctx, userID, unlocked(locked, want)...)
		if err != nil {
			return zero, nil, err
		}
		maps.Copy(locked, more)

		if row, err = load(); err != nil {
			return zero, nil, err
		}
		want = accountsOf(row)
		if len(unlocked(locked, want)) == 0 {
			return row, locked, nil
		}
	}
	return zero, nil, core.Conflict(errMovedConcurrently, "accounts still moving after %d attempts", maxRelock)
}

func unlocked(locked map[string]core.Account, ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := locked[id]; !ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(m map[string]core.Account) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// errorType classifies err for the error_type log field.
func errorType(err error) string {
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case core.IsConflict(err):
		return log.ErrorTypeConflict
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeDatabase
	}
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
