package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a registered trader and their cash balance
type Account struct {
	ID           int             `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Cash         decimal.Decimal `json:"cash"`
	CreatedAt    time.Time       `json:"created_at"`
}
