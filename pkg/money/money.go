// Package money provides currency-safe helpers for displaying and comparing
// transaction amounts. Amounts flow through the pipeline as shopspring decimals;
// go-money handles formatting wherever a dollar figure ends up in user-facing text.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD is the only currency the pipeline deals in. Multi-currency is out of scope.
const USD = "USD"

// FromDecimal converts a decimal amount into minor-unit Money.
func FromDecimal(amount decimal.Decimal) *money.Money {
	currency := money.GetCurrency(USD)
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return money.New(cents, USD)
}

// Display renders an amount as a localized currency string, e.g. "$15.99".
func Display(amount decimal.Decimal) string {
	return FromDecimal(amount).Display()
}

// DisplayAbs renders the magnitude of an amount, dropping the debit sign.
// Spending amounts are stored negative; explanations read better unsigned.
func DisplayAbs(amount decimal.Decimal) string {
	return FromDecimal(amount.Abs()).Display()
}

// DisplayFloat renders a float amount; used where statistics leave decimal space.
func DisplayFloat(amount float64) string {
	return Display(decimal.NewFromFloat(amount))
}
