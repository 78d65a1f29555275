package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a current stock holding of one account.
// A position with zero shares is never stored; it is deleted instead.
type Position struct {
	Username  string          `json:"-"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}
