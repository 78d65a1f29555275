package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// Fill is one settled trade applied to a position
type Fill struct {
	Username  string
	Symbol    string
	Name      string
	TradeType string // models.TradeTypePurchase or models.TradeTypeSale
	Shares    int64
	Price     decimal.Decimal
}

// Aggregate returns the position that results from applying fill to existing.
// existing may be nil when the account holds no shares. A nil result means the
// position must be deleted. existing is never modified.
func Aggregate(existing *models.Position, fill Fill) (*models.Position, error) {
	if fill.Shares <= 0 {
		return nil, ErrInvalidQuantity
	}
	price := Round(fill.Price)

	switch fill.TradeType {
	case models.TradeTypePurchase:
		next := &models.Position{
			Username: fill.Username,
			Symbol:   fill.Symbol,
			Name:     fill.Name,
			Shares:   fill.Shares,
		}
		if existing != nil {
			next.Shares += existing.Shares
			if next.Name == "" {
				next.Name = existing.Name
			}
		}
		next.Price = price
		next.Total = Value(next.Shares, price)
		return next, nil

	case models.TradeTypeSale:
		if existing == nil {
			return nil, ErrNoSuchPosition
		}
		if fill.Shares > existing.Shares {
			return nil, ErrInsufficientShares
		}
		if fill.Shares == existing.Shares {
			return nil, nil
		}
		next := *existing
		next.Shares -= fill.Shares
		next.Price = price
		next.Total = Value(next.Shares, price)
		return &next, nil
	}

	return nil, ErrInvalidOrder
}
