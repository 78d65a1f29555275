package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every stored amount is rounded to.
const CurrencyPlaces = 2

// DefaultStartingCash is the balance of a new or reset account.
var DefaultStartingCash = decimal.NewFromInt(10000)

// MaxCash is the largest balance the accounts.cash NUMERIC(14,2) column holds.
var MaxCash = decimal.RequireFromString("999999999999.99")

// Round rounds an amount to currency precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// Value returns shares × price rounded to currency precision.
func Value(shares int64, price decimal.Decimal) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(shares)))
}

// FormatUSD renders an amount as a US dollar string such as "$1,050.00".
func FormatUSD(d decimal.Decimal) string {
	cents := Round(d).Shift(CurrencyPlaces).IntPart()
	return money.New(cents, money.USD).Display()
}
