package models

import "github.com/shopspring/decimal"

// Quote is a point-in-time price for a symbol from the quote provider
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
