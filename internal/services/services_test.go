package services

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/storage"
)

type testEnv struct {
	store         *storage.Store
	outbox        *notify.Outbox
	ledger        *LedgerService
	transfers     *TransferService
	interest      *InterestService
	notifications *NotificationService
	now           time.Time
	dbPath        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := log.New(log.Config{Output: io.Discard})
	resolver := NewCategoryResolver(cache.NewLRUCache[core.Category](100, time.Hour))
	env := &testEnv{
		store:     store,
		outbox:    notify.NewOutbox(),
		ledger:    NewLedgerService(store, resolver, logger),
		transfers: NewTransferService(store, resolver, logger),
		interest:  NewInterestService(store, resolver, logger, 5*time.Second),
		now:       time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		dbPath:    dbPath,
	}
	env.notifications = NewNotificationService(store, env.outbox, logger, core.DefaultDueWindow, 5*time.Second)

	clock := func() time.Time { return env.now }
	env.ledger.now = clock
	env.transfers.now = clock
	env.notifications.now = clock
	return env
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) regular(t *testing.T, userID, name, currency string) core.Account {
	t.Helper()
	a, err := e.ledger.CreateAccount(context.Background(), userID, AccountParams{
		Name: name, Currency: currency, Kind: core.KindRegular,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) debt(t *testing.T, userID, name, amount string) core.Account {
	t.Helper()
	a, err := e.ledger.CreateAccount(context.Background(), userID, AccountParams{
		Name:     name,
		Currency: "RUB",
		Kind:     core.KindDebt,
		Debt: &core.DebtTerms{
			InitialAmount: money(amount),
			CreditorName:  "Bank",
			DueDate:       core.NewDate(2025, 12, 31),
		},
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) savings(t *testing.T, userID, rate string, start core.Date, withdrawal bool) core.Account {
	t.Helper()
	a, err := e.ledger.CreateAccount(context.Background(), userID, AccountParams{
		Name:     "Deposit",
		Currency: "RUB",
		Kind:     core.KindSavings,
		Savings: &core.SavingsTerms{
			InterestRate:      money(rate),
			DepositTermMonths: 12,
			DepositStartDate:  start,
			WithdrawalAllowed: withdrawal,
		},
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) category(t *testing.T, userID, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := e.ledger.CreateCategory(context.Background(), userID, name, typ)
	require.NoError(t, err)
	return c
}

// deposit records an income on the account in a fresh category.
func (e *testEnv) deposit(t *testing.T, userID, accountID, amount string) core.Transaction {
	t.Helper()
	c := e.category(t, userID, "Salary "+uuid.NewString()[:8], core.CategoryIncome)
	tx, err := e.ledger.CreateTransaction(context.Background(), userID, CreateTransactionParams{
		AccountID:  accountID,
		Amount:     money(amount),
		Direction:  core.Income,
		CategoryID: c.ID,
		Date:       core.DateOf(e.now),
	})
	require.NoError(t, err)
	return tx
}

func (e *testEnv) balance(t *testing.T, userID, accountID string) decimal.Decimal {
	t.Helper()
	a, err := e.ledger.GetAccount(context.Background(), userID, accountID)
	require.NoError(t, err)
	return a.Balance
}

// requireBalanceMatchesLedger checks the stored balance against a fresh
// recompute over the stored transactions.
func (e *testEnv) requireBalanceMatchesLedger(t *testing.T, userID, accountID string) {
	t.Helper()
	ctx := context.Background()
	a, err := e.ledger.GetAccount(ctx, userID, accountID)
	require.NoError(t, err)
	txns, err := e.ledger.ListTransactions(ctx, userID, accountID)
	require.NoError(t, err)
	require.True(t, core.Recompute(a, txns).Equal(a.Balance),
		"account %s stores %s, ledger says %s", accountID, a.Balance, core.Recompute(a, txns))
}

// exec runs raw SQL against the test database, bypassing the services. Tests
// use it to plant rows and triggers the services would never write.
func (e *testEnv) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	db, err := sql.Open("sqlite", storage.SQLiteDSN(e.dbPath))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(query, args...)
	require.NoError(t, err)
}
