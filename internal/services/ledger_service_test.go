package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	debt := env.debt(t, "u1", "Car loan", "5000")
	assert.True(t, debt.Balance.Equal(money("-5000")), "debt starts at minus the borrowed amount")

	cash := env.regular(t, "u1", "Cash", "rub")
	assert.Equal(t, "RUB", cash.Currency)
	assert.True(t, cash.Balance.IsZero())

	_, err := env.ledger.CreateAccount(ctx, "u1", AccountParams{Name: "Bad", Currency: "RUBL", Kind: core.KindRegular})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = env.ledger.CreateAccount(ctx, "u1", AccountParams{
		Name: "Both", Currency: "RUB", Kind: core.KindDebt,
		Savings: &core.SavingsTerms{InterestRate: money("1")},
	})
	assert.ErrorIs(t, err, core.ErrValidation, "debt and savings terms are mutually exclusive")
}

func TestCreateTransaction_UpdatesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	food := env.category(t, "u1", "Food", core.CategoryExpense)

	env.deposit(t, "u1", a.ID, "1000")
	_, err := env.ledger.CreateTransaction(ctx, "u1", CreateTransactionParams{
		AccountID:  a.ID,
		Amount:     money("120.456"),
		Direction:  core.Expense,
		CategoryID: food.ID,
	})
	require.NoError(t, err)

	assert.True(t, env.balance(t, "u1", a.ID).Equal(money("879.54")), "amounts are rounded to cents")
	env.requireBalanceMatchesLedger(t, "u1", a.ID)
}

func TestCreateTransaction_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cash := env.regular(t, "u1", "Cash", "RUB")
	locked := env.savings(t, "u1", "5", core.NewDate(2024, 1, 1), false)
	food := env.category(t, "u1", "Food", core.CategoryExpense)
	salary := env.category(t, "u1", "Salary", core.CategoryIncome)
	foreign := env.category(t, "u2", "Food", core.CategoryExpense)

	tests := []struct {
		name   string
		userID string
		params CreateTransactionParams
		target error
	}{
		{
			name:   "zero amount",
			userID: "u1",
			params: CreateTransactionParams{AccountID: cash.ID, Amount: money("0"), Direction: core.Expense, CategoryID: food.ID},
			target: core.ErrValidation,
		},
		{
			name:   "category kind differs from direction",
			userID: "u1",
			params: CreateTransactionParams{AccountID: cash.ID, Amount: money("10"), Direction: core.Expense, CategoryID: salary.ID},
			target: core.ErrValidation,
		},
		{
			name:   "category of another user",
			userID: "u1",
			params: CreateTransactionParams{AccountID: cash.ID, Amount: money("10"), Direction: core.Expense, CategoryID: foreign.ID},
			target: core.ErrNotFound,
		},
		{
			name:   "account of another user",
			userID: "u2",
			params: CreateTransactionParams{AccountID: cash.ID, Amount: money("10"), Direction: core.Expense, CategoryID: foreign.ID},
			target: core.ErrNotFound,
		},
		{
			name:   "withdrawal from locked savings",
			userID: "u1",
			params: CreateTransactionParams{AccountID: locked.ID, Amount: money("10"), Direction: core.Expense, CategoryID: food.ID},
			target: core.ErrWithdrawalNotAllowed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.CreateTransaction(ctx, tt.userID, tt.params)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	txns, err := env.ledger.ListTransactions(ctx, "u1", cash.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestCreateTransaction_TransferCategoryReserved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	require.NoError(t, env.ledger.ProvisionUser(ctx, "u1", "RUB"))

	categories, err := env.ledger.ListCategories(ctx, "u1")
	require.NoError(t, err)
	var transferID string
	for _, c := range categories {
		if c.Type == core.CategoryTransfer {
			transferID = c.ID
		}
	}
	require.NotEmpty(t, transferID)

	_, err = env.ledger.CreateTransaction(ctx, "u1", CreateTransactionParams{
		AccountID: a.ID, Amount: money("10"), Direction: core.Income, CategoryID: transferID,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = env.ledger.CreateCategory(ctx, "u1", "Moves", core.CategoryTransfer)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCreateTransaction_DebtCannotTurnPositive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.debt(t, "u1", "Loan", "100")
	repay := env.category(t, "u1", "Repayment", core.CategoryIncome)

	_, err := env.ledger.CreateTransaction(ctx, "u1", CreateTransactionParams{
		AccountID: d.ID, Amount: money("150"), Direction: core.Income, CategoryID: repay.ID,
	})
	assert.ErrorIs(t, err, core.ErrDebtWouldBePositive)
	assert.ErrorIs(t, err, core.ErrConflict)

	txns, err := env.ledger.ListTransactions(ctx, "u1", d.ID)
	require.NoError(t, err)
	assert.Empty(t, txns, "rejected write leaves no transaction behind")
	assert.True(t, env.balance(t, "u1", d.ID).Equal(money("-100")))

	_, err = env.ledger.CreateTransaction(ctx, "u1", CreateTransactionParams{
		AccountID: d.ID, Amount: money("100"), Direction: core.Income, CategoryID: repay.ID,
	})
	require.NoError(t, err)
	assert.True(t, env.balance(t, "u1", d.ID).IsZero())
}

func TestUpdateTransaction_MovesBetweenAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	b := env.regular(t, "u1", "Card", "RUB")
	tx := env.deposit(t, "u1", a.ID, "300")

	updated, err := env.ledger.UpdateTransaction(ctx, "u1", tx.ID, UpdateTransactionParams{
		AccountID:   b.ID,
		Amount:      money("250"),
		Direction:   core.Income,
		CategoryID:  tx.CategoryID,
		Date:        tx.Date,
		Description: "moved",
	})
	require.NoError(t, err)
	assert.Equal(t, tx.ID, updated.ID)
	assert.Equal(t, b.ID, updated.AccountID)

	assert.True(t, env.balance(t, "u1", a.ID).IsZero())
	assert.True(t, env.balance(t, "u1", b.ID).Equal(money("250")))
	env.requireBalanceMatchesLedger(t, "u1", a.ID)
	env.requireBalanceMatchesLedger(t, "u1", b.ID)
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	keep := env.deposit(t, "u1", a.ID, "100")
	drop := env.deposit(t, "u1", a.ID, "40")

	require.NoError(t, env.ledger.DeleteTransaction(ctx, "u1", drop.ID))
	assert.True(t, env.balance(t, "u1", a.ID).Equal(money("100")))

	assert.ErrorIs(t, env.ledger.DeleteTransaction(ctx, "u2", keep.ID), core.ErrNotFound)
	assert.ErrorIs(t, env.ledger.DeleteTransaction(ctx, "u1", drop.ID), core.ErrNotFound)
}

func TestTransferLegsAreImmutableAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	b := env.regular(t, "u1", "Card", "RUB")
	env.deposit(t, "u1", a.ID, "100")

	res, err := env.transfers.CreateTransfer(ctx, "u1", CreateTransferParams{FromAccountID: a.ID, ToAccountID: b.ID, Amount: money("60")})
	require.NoError(t, err)

	err = env.ledger.DeleteTransaction(ctx, "u1", res.FromLeg.ID)
	assert.ErrorIs(t, err, core.ErrTransferLeg)

	_, err = env.ledger.UpdateTransaction(ctx, "u1", res.ToLeg.ID, UpdateTransactionParams{
		AccountID: b.ID, Amount: money("1"), Direction: core.Income, CategoryID: res.ToLeg.CategoryID,
	})
	assert.ErrorIs(t, err, core.ErrTransferLeg)

	assert.True(t, env.balance(t, "u1", a.ID).Equal(money("40")))
	assert.True(t, env.balance(t, "u1", b.ID).Equal(money("60")))
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.debt(t, "u1", "Loan", "1000")
	repay := env.category(t, "u1", "Repayment", core.CategoryIncome)
	_, err := env.ledger.CreateTransaction(ctx, "u1", CreateTransactionParams{
		AccountID: d.ID, Amount: money("400"), Direction: core.Income, CategoryID: repay.ID,
	})
	require.NoError(t, err)

	params := AccountParams{
		Name: "Loan", Currency: "RUB", Kind: core.KindDebt,
		Debt: &core.DebtTerms{InitialAmount: money("800"), CreditorName: "Bank", DueDate: core.NewDate(2025, 12, 31)},
	}
	updated, err := env.ledger.UpdateAccount(ctx, "u1", d.ID, params)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(money("-400")), "balance follows the new initial amount")

	params.Debt.InitialAmount = money("300")
	_, err = env.ledger.UpdateAccount(ctx, "u1", d.ID, params)
	assert.ErrorIs(t, err, core.ErrDebtWouldBePositive)
	assert.True(t, env.balance(t, "u1", d.ID).Equal(money("-400")))
}

func TestUpdateAccount_CurrencyLockedByTransfers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	b := env.regular(t, "u1", "Card", "RUB")
	env.deposit(t, "u1", a.ID, "100")
	_, err := env.transfers.CreateTransfer(ctx, "u1", CreateTransferParams{FromAccountID: a.ID, ToAccountID: b.ID, Amount: money("10")})
	require.NoError(t, err)

	_, err = env.ledger.UpdateAccount(ctx, "u1", b.ID, AccountParams{Name: "Card", Currency: "USD", Kind: core.KindRegular})
	assert.ErrorIs(t, err, core.ErrCurrencyMismatch)

	renamed, err := env.ledger.UpdateAccount(ctx, "u1", b.ID, AccountParams{Name: "Debit card", Currency: "RUB", Kind: core.KindRegular})
	require.NoError(t, err)
	assert.Equal(t, "Debit card", renamed.Name)
	assert.True(t, renamed.Balance.Equal(money("10")))
}

func TestDeleteAccount_RemovesTransfers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	b := env.regular(t, "u1", "Card", "RUB")
	env.deposit(t, "u1", a.ID, "100")
	_, err := env.transfers.CreateTransfer(ctx, "u1", CreateTransferParams{FromAccountID: a.ID, ToAccountID: b.ID, Amount: money("30")})
	require.NoError(t, err)

	require.NoError(t, env.ledger.DeleteAccount(ctx, "u1", b.ID))

	_, err = env.ledger.GetAccount(ctx, "u1", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.True(t, env.balance(t, "u1", a.ID).Equal(money("100")), "outgoing leg goes with the transfer")

	transfers, err := env.transfers.ListTransfers(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, transfers)

	assert.ErrorIs(t, env.ledger.DeleteAccount(ctx, "u1", b.ID), core.ErrNotFound)
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.regular(t, "u1", "Cash", "RUB")
	env.debt(t, "u1", "Loan", "300")
	usd := env.regular(t, "u1", "Dollars", "USD")
	env.deposit(t, "u1", a.ID, "500")
	env.deposit(t, "u1", usd.ID, "20")

	totals, err := env.ledger.Summary(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "RUB", totals[0].Currency)
	assert.True(t, totals[0].Assets.Equal(money("500")))
	assert.True(t, totals[0].Debts.Equal(money("-300")))
	assert.True(t, totals[0].Net.Equal(money("200")))
	assert.Equal(t, "USD", totals[1].Currency)
	assert.True(t, totals[1].Net.Equal(money("20")))
}

func TestProvisionUser_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.ProvisionUser(ctx, "u1", "eur"))
	require.NoError(t, env.ledger.ProvisionUser(ctx, "u1", "eur"))

	accounts, err := env.ledger.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Cash", accounts[0].Name)
	assert.Equal(t, "EUR", accounts[0].Currency)

	categories, err := env.ledger.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, categories, 2)
	for _, c := range categories {
		assert.True(t, c.System)
	}

	setting, err := env.notifications.GetSetting(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, setting.Enabled)
	assert.Len(t, setting.DaysOfWeek, 7)
	require.NotNil(t, setting.NextSendAt)
	assert.True(t, setting.NextSendAt.After(env.now))
}
