package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateAddMonths(t *testing.T) {
	cases := []struct {
		from Date
		n    int
		want Date
	}{
		{NewDate(2024, 1, 15), 1, NewDate(2024, 2, 15)},
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 12, 31), 1, NewDate(2025, 1, 31)},
		{NewDate(2024, 3, 31), -1, NewDate(2024, 2, 29)},
		{NewDate(2024, 8, 31), 13, NewDate(2025, 9, 30)},
	}
	for _, tc := range cases {
		got := tc.from.AddMonths(tc.n)
		if !got.Equal(tc.want.Time) {
			t.Fatalf("%s + %d months = %s, want %s", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestDateScanValue(t *testing.T) {
	d := NewDate(2024, 2, 29)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v)

	var scanned Date
	require.NoError(t, scanned.Scan("2024-02-29"))
	assert.True(t, scanned.Equal(d.Time))

	require.NoError(t, scanned.Scan([]byte("2024-02-29T00:00:00Z")))
	assert.True(t, scanned.Equal(d.Time))

	require.NoError(t, scanned.Scan(time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC)))
	assert.True(t, scanned.Equal(d.Time))

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, scanned.Scan(42))
}

func TestClockTime(t *testing.T) {
	c, err := ParseClockTime("07:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 7, Minute: 5}, c)
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"24:00", "7:5:1", "ab:cd", ""} {
		_, err := ParseClockTime(bad)
		assert.Error(t, err, bad)
	}

	var scanned ClockTime
	require.NoError(t, scanned.Scan([]byte("23:59")))
	assert.Equal(t, ClockTime{Hour: 23, Minute: 59}, scanned)
}

func TestAccountValidate(t *testing.T) {
	due := NewDate(2025, 1, 1)
	good := []Account{
		{Name: "Cash", Currency: "RUB", Kind: KindRegular},
		{Name: "Loan", Currency: "EUR", Kind: KindDebt, Debt: &DebtTerms{
			InitialAmount: decimal.NewFromInt(5000), CreditorName: "Bank", DueDate: due,
		}},
		{Name: "Deposit", Currency: "USD", Kind: KindSavings, Savings: &SavingsTerms{
			InterestRate: decimal.NewFromInt(6), DepositStartDate: NewDate(2024, 1, 1), DepositEndDate: NewDate(2025, 1, 1),
		}},
	}
	for _, a := range good {
		assert.NoError(t, a.Validate(), a.Name)
	}

	bads := []struct {
		field   string
		account Account
	}{
		{"name", Account{Currency: "RUB", Kind: KindRegular}},
		{"currency", Account{Name: "x", Currency: "rub", Kind: KindRegular}},
		{"kind", Account{Name: "x", Currency: "RUB", Kind: "crypto"}},
		{"kind", Account{Name: "x", Currency: "RUB", Kind: KindRegular, Savings: &SavingsTerms{}}},
		{"debt", Account{Name: "x", Currency: "RUB", Kind: KindDebt}},
		{"initial_amount", Account{Name: "x", Currency: "RUB", Kind: KindDebt, Debt: &DebtTerms{CreditorName: "b", DueDate: due}}},
		{"creditor_name", Account{Name: "x", Currency: "RUB", Kind: KindDebt, Debt: &DebtTerms{InitialAmount: decimal.NewFromInt(1), DueDate: due}}},
		{"due_date", Account{Name: "x", Currency: "RUB", Kind: KindDebt, Debt: &DebtTerms{InitialAmount: decimal.NewFromInt(1), CreditorName: "b"}}},
		{"kind", Account{Name: "x", Currency: "RUB", Kind: KindDebt, Debt: &DebtTerms{InitialAmount: decimal.NewFromInt(1), CreditorName: "b", DueDate: due}, Savings: &SavingsTerms{}}},
		{"interest_rate", Account{Name: "x", Currency: "RUB", Kind: KindSavings, Savings: &SavingsTerms{InterestRate: decimal.NewFromInt(101)}}},
		{"deposit_end_date", Account{Name: "x", Currency: "RUB", Kind: KindSavings, Savings: &SavingsTerms{
			DepositStartDate: NewDate(2024, 1, 1), DepositEndDate: NewDate(2024, 1, 1),
		}}},
		{"target_amount", Account{Name: "x", Currency: "RUB", Kind: KindSavings, Savings: &SavingsTerms{TargetAmount: decimal.NewFromInt(-1)}}},
	}
	for _, tc := range bads {
		err := tc.account.Validate()
		require.Error(t, err, tc.field)
		assert.ErrorIs(t, err, ErrValidation)
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.Fields(), tc.field)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		AccountID: "a", CategoryID: "c", Amount: decimal.NewFromInt(1), Direction: Income,
		Date: NewDate(2024, 1, 1), Time: ClockTime{Hour: 9},
	}
	require.NoError(t, good.Validate())
	assert.True(t, good.Signed().Equal(decimal.NewFromInt(1)))

	good.Direction = Expense
	assert.True(t, good.Signed().Equal(decimal.NewFromInt(-1)))

	bad := good
	bad.Amount = decimal.NewFromInt(-5)
	assert.True(t, IsValidation(bad.Validate()))

	bad = good
	bad.Amount = decimal.Zero
	assert.True(t, IsValidation(bad.Validate()))

	bad = good
	bad.Direction = "sideways"
	assert.True(t, IsValidation(bad.Validate()))

	bad = good
	bad.Date = Date{}
	assert.True(t, IsValidation(bad.Validate()))
}

func TestSummarize(t *testing.T) {
	totals := Summarize([]Account{
		{Currency: "RUB", Kind: KindRegular, Balance: decimal.NewFromInt(1000)},
		{Currency: "RUB", Kind: KindDebt, Balance: decimal.NewFromInt(-300)},
		{Currency: "EUR", Kind: KindSavings, Balance: decimal.NewFromInt(50)},
	})
	require.Len(t, totals, 2)
	assert.Equal(t, "EUR", totals[0].Currency)
	assert.True(t, totals[0].Net.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "RUB", totals[1].Currency)
	assert.True(t, totals[1].Assets.Equal(decimal.NewFromInt(1000)))
	assert.True(t, totals[1].Debts.Equal(decimal.NewFromInt(-300)))
	assert.True(t, totals[1].Net.Equal(decimal.NewFromInt(700)))
}
