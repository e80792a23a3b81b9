// Package core provides money handling utilities.
//
// Amounts are shopspring decimals kept at two fractional digits, rounded
// half away from zero on the third decimal place.
package core

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for amounts.
const MoneyPlaces = 2

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// RoundMoney rounds to MoneyPlaces, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
