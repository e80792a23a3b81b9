package core

import "github.com/shopspring/decimal"

// BaseBalance is the balance of an account with no transactions: zero for
// regular and savings accounts, minus the borrowed amount for debts.
func BaseBalance(a Account) decimal.Decimal {
	if a.Kind == KindDebt && a.Debt != nil {
		return a.Debt.InitialAmount.Neg()
	}
	return decimal.Zero
}

// Recompute derives the account balance from its full transaction set.
// Transactions that belong to other accounts are ignored.
func Recompute(a Account, txns []Transaction) decimal.Decimal {
	balance := BaseBalance(a)
	for _, t := range txns {
		if t.AccountID != a.ID {
			continue
		}
		balance = balance.Add(t.Signed())
	}
	return balance
}

// ProjectBalance returns the balance the account would have after dropping
// the transactions with ids in remove and adding the ones in add. It is used
// to reject a mutation before it is written.
func ProjectBalance(a Account, current []Transaction, remove []string, add []Transaction) decimal.Decimal {
	drop := make(map[string]bool, len(remove))
	for _, id := range remove {
		drop[id] = true
	}
	kept := make([]Transaction, 0, len(current)+len(add))
	for _, t := range current {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	kept = append(kept, add...)
	return Recompute(a, kept)
}

// CheckBalance enforces the kind-specific balance rule: a debt account can
// never be above zero.
func CheckBalance(a Account, balance decimal.Decimal) error {
	if a.Kind == KindDebt && balance.IsPositive() {
		return Conflict(ErrDebtWouldBePositive, "account %s would reach %s", a.ID, balance.StringFixed(MoneyPlaces))
	}
	return nil
}
