package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade type constants
const (
	TradeTypePurchase = "PURCHASE"
	TradeTypeSale     = "SALE"
)

// Transaction is an append-only history entry for a settled trade
type Transaction struct {
	ID         int64           `json:"id"`
	Username   string          `json:"-"`
	Symbol     string          `json:"symbol"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	TradeType  string          `json:"trade_type"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// EventTradeSettled is the event type of a committed trade
const EventTradeSettled = "TRADE_SETTLED"

// TradeEvent represents a Kafka event for a settled trade
type TradeEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Username  string          `json:"username"`
	Symbol    string          `json:"symbol"`
	TradeType string          `json:"trade_type"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Cash      decimal.Decimal `json:"cash"`
	Timestamp time.Time       `json:"timestamp"`
}
