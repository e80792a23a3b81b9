package core

import "github.com/shopspring/decimal"

var monthlyRateDivisor = decimal.NewFromInt(12 * 100)

// ShouldAccrue reports whether a savings account is due for its monthly
// interest posting on today. An account is due one calendar month after its
// last accrual, or one month after the deposit started if it never accrued.
func ShouldAccrue(a Account, today Date) bool {
	if a.Kind != KindSavings || a.Savings == nil {
		return false
	}
	terms := a.Savings
	if terms.InterestRate.IsZero() || terms.DepositStartDate.IsZero() {
		return false
	}
	if !a.Balance.IsPositive() {
		return false
	}
	from := terms.DepositStartDate
	if !terms.LastInterestDate.IsZero() {
		from = terms.LastInterestDate
	}
	return today.OnOrAfter(from.AddMonths(1))
}

// ComputeInterest returns one month of interest on balance at an annual
// percentage rate, rounded to cents.
func ComputeInterest(balance, annualRatePercent decimal.Decimal) decimal.Decimal {
	return RoundMoney(balance.Mul(annualRatePercent).Div(monthlyRateDivisor))
}
