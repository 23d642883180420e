package controllers

import "github.com/shopspring/decimal"

// money renders a two-place amount as a JSON number.
func money(amount decimal.Decimal) *float64 {
	v := amount.Round(2).InexactFloat64()
	return &v
}
