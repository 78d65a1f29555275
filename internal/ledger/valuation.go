package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/paper-trader/internal/models"
)

// Portfolio is a read-side view of an account valued at last stored prices
type Portfolio struct {
	Username  string             `json:"username"`
	Cash      decimal.Decimal    `json:"cash"`
	Positions []*models.Position `json:"positions"`
	Holdings  decimal.Decimal    `json:"holdings"`
	Total     decimal.Decimal    `json:"total"`
}

// SymbolFailure records a position whose price could not be refreshed
type SymbolFailure struct {
	Symbol string
	Err    error
}

func (f SymbolFailure) Error() string {
	return f.Symbol + ": " + f.Err.Error()
}

func (f SymbolFailure) Unwrap() error {
	return f.Err
}

// RefreshResult lists which positions were repriced and which were skipped
type RefreshResult struct {
	Updated []string
	Failed  []SymbolFailure
}

// Portfolio returns cash, positions and net worth without contacting the
// quote provider.
func (e *Engine) Portfolio(ctx context.Context, username string) (*Portfolio, error) {
	account, err := e.store.Account(ctx, username)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.Positions(ctx, username)
	if err != nil {
		return nil, err
	}

	holdings := decimal.Zero
	for _, p := range positions {
		holdings = holdings.Add(p.Total)
	}

	return &Portfolio{
		Username:  account.Username,
		Cash:      account.Cash,
		Positions: positions,
		Holdings:  holdings,
		Total:     account.Cash.Add(holdings),
	}, nil
}

// RefreshPrices re-quotes every held position and stores the new price and
// value. Symbols the provider cannot resolve are skipped and reported in
// RefreshResult.Failed; storage errors abort the refresh.
func (e *Engine) RefreshPrices(ctx context.Context, username string) (*RefreshResult, error) {
	if _, err := e.store.Account(ctx, username); err != nil {
		return nil, err
	}
	positions, err := e.store.Positions(ctx, username)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	for _, p := range positions {
		q, err := e.quotes.Lookup(ctx, p.Symbol)
		if err != nil {
			log.WithError(err).WithField("symbol", p.Symbol).Warn("skipping price refresh")
			result.Failed = append(result.Failed, SymbolFailure{
				Symbol: p.Symbol,
				Err:    fmt.Errorf("%w: %v", ErrQuoteUnavailable, err),
			})
			continue
		}
		price := Round(q.Price)
		if !price.IsPositive() {
			log.WithField("symbol", p.Symbol).Warn("skipping price refresh for sub-cent quote")
			result.Failed = append(result.Failed, SymbolFailure{
				Symbol: p.Symbol,
				Err:    fmt.Errorf("%w: quoted below one cent", ErrQuoteUnavailable),
			})
			continue
		}

		updated := false
		err = e.store.WithAccount(ctx, username, func(tx AccountTx) error {
			current, err := tx.Position(ctx, p.Symbol)
			if errors.Is(err, ErrNoSuchPosition) {
				// sold since we listed it
				return nil
			}
			if err != nil {
				return err
			}
			current.Price = price
			current.Total = Value(current.Shares, price)
			updated = true
			return tx.SavePosition(ctx, current)
		})
		if err != nil {
			return nil, err
		}
		if updated {
			result.Updated = append(result.Updated, p.Symbol)
		}
	}

	return result, nil
}
