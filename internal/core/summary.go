package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencyTotal is the sum of account balances in one currency.
type CurrencyTotal struct {
	Currency string
	Assets   decimal.Decimal // regular and savings balances
	Debts    decimal.Decimal // debt balances, zero or negative
	Net      decimal.Decimal
}

// Summarize totals balances per currency. Currencies are never converted
// into each other.
func Summarize(accounts []Account) []CurrencyTotal {
	byCurrency := make(map[string]*CurrencyTotal)
	for _, a := range accounts {
		total, ok := byCurrency[a.Currency]
		if !ok {
			total = &CurrencyTotal{Currency: a.Currency}
			byCurrency[a.Currency] = total
		}
		if a.Kind == KindDebt {
			total.Debts = total.Debts.Add(a.Balance)
		} else {
			total.Assets = total.Assets.Add(a.Balance)
		}
		total.Net = total.Assets.Add(total.Debts)
	}

	out := make([]CurrencyTotal, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
