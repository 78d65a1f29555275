package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/quote"
)

// Engine settles buys and sells against the ledger and values portfolios
type Engine struct {
	store     Store
	quotes    quote.Provider
	publisher Publisher
	now       func() time.Time
}

// Settlement describes a committed trade
type Settlement struct {
	Transaction *models.Transaction `json:"transaction"`
	Position    *models.Position    `json:"position,omitempty"` // nil once the position is closed
	Amount      decimal.Decimal     `json:"amount"`
	Cash        decimal.Decimal     `json:"cash"`
}

// NewEngine creates a new Engine. publisher may be nil.
func NewEngine(store Store, quotes quote.Provider, publisher Publisher) *Engine {
	return &Engine{
		store:     store,
		quotes:    quotes,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Buy purchases shares of symbol for the account at the current quote
func (e *Engine) Buy(ctx context.Context, username, symbol string, shares int64) (*Settlement, error) {
	if shares <= 0 {
		return nil, ErrInvalidQuantity
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if errors.Is(err, quote.ErrNotFound) {
		return nil, ErrInvalidOrder
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	price := Round(q.Price)
	if !price.IsPositive() {
		return nil, ErrInvalidOrder
	}
	cost := Value(shares, price)

	var result *Settlement
	err = e.store.WithAccount(ctx, username, func(tx AccountTx) error {
		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}
		if cash.LessThan(cost) {
			return ErrInsufficientFunds
		}

		existing, err := tx.Position(ctx, q.Symbol)
		if err != nil && !errors.Is(err, ErrNoSuchPosition) {
			return err
		}

		next, err := Aggregate(existing, Fill{
			Username:  username,
			Symbol:    q.Symbol,
			Name:      q.Name,
			TradeType: models.TradeTypePurchase,
			Shares:    shares,
			Price:     price,
		})
		if err != nil {
			return err
		}

		record := &models.Transaction{
			Username:   username,
			Symbol:     q.Symbol,
			Shares:     shares,
			Price:      price,
			TradeType:  models.TradeTypePurchase,
			ExecutedAt: e.now(),
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, next); err != nil {
			return err
		}

		remaining := cash.Sub(cost)
		if err := tx.SetCash(ctx, remaining); err != nil {
			return err
		}

		result = &Settlement{Transaction: record, Position: next, Amount: cost, Cash: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.settled(ctx, result)
	return result, nil
}

// Sell sells shares of an existing position at the current quote
func (e *Engine) Sell(ctx context.Context, username, symbol string, shares int64) (*Settlement, error) {
	if shares <= 0 {
		return nil, ErrInvalidQuantity
	}
	symbol = quote.Normalize(symbol)
	if symbol == "" {
		return nil, ErrNoSuchPosition
	}

	// Validate against current holdings before paying for a quote lookup;
	// the checks are repeated under the account lock.
	held, err := e.store.Position(ctx, username, symbol)
	if err != nil {
		return nil, err
	}
	if shares > held.Shares {
		return nil, ErrInsufficientShares
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	price := Round(q.Price)
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s quoted below one cent", ErrQuoteUnavailable, symbol)
	}
	proceeds := Value(shares, price)

	var result *Settlement
	err = e.store.WithAccount(ctx, username, func(tx AccountTx) error {
		existing, err := tx.Position(ctx, symbol)
		if err != nil {
			return err
		}

		next, err := Aggregate(existing, Fill{
			Username:  username,
			Symbol:    symbol,
			TradeType: models.TradeTypeSale,
			Shares:    shares,
			Price:     price,
		})
		if err != nil {
			return err
		}

		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}

		record := &models.Transaction{
			Username:   username,
			Symbol:     symbol,
			Shares:     shares,
			Price:      price,
			TradeType:  models.TradeTypeSale,
			ExecutedAt: e.now(),
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}

		if next == nil {
			err = tx.DeletePosition(ctx, symbol)
		} else {
			err = tx.SavePosition(ctx, next)
		}
		if err != nil {
			return err
		}

		balance := cash.Add(proceeds)
		if err := tx.SetCash(ctx, balance); err != nil {
			return err
		}

		result = &Settlement{Transaction: record, Position: next, Amount: proceeds, Cash: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.settled(ctx, result)
	return result, nil
}

// History returns the account's transactions, most recent first
func (e *Engine) History(ctx context.Context, username string, limit int) ([]*models.Transaction, error) {
	if _, err := e.store.Account(ctx, username); err != nil {
		return nil, err
	}
	return e.store.Transactions(ctx, username, limit)
}

// settled logs a committed trade and publishes it. Publishing is best effort;
// the trade is already durable.
func (e *Engine) settled(ctx context.Context, s *Settlement) {
	t := s.Transaction
	log.WithFields(log.Fields{
		"username":   t.Username,
		"symbol":     t.Symbol,
		"trade_type": t.TradeType,
		"shares":     t.Shares,
		"price":      t.Price.StringFixed(CurrencyPlaces),
		"cash":       s.Cash.StringFixed(CurrencyPlaces),
	}).Info("trade settled")

	if e.publisher == nil {
		return
	}

	event := &models.TradeEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventTradeSettled,
		Username:  t.Username,
		Symbol:    t.Symbol,
		TradeType: t.TradeType,
		Shares:    t.Shares,
		Price:     t.Price,
		Amount:    s.Amount,
		Cash:      s.Cash,
		Timestamp: t.ExecutedAt,
	}
	if err := e.publisher.PublishTradeSettled(ctx, event); err != nil {
		log.WithError(err).WithField("symbol", t.Symbol).Warn("failed to publish trade event")
	}
}
