package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/trogers1052/paper-trader/internal/models"
)

// ErrNotFound is returned when the provider does not know the symbol.
var ErrNotFound = errors.New("symbol not found")

// Provider resolves a ticker symbol to its current price and display name.
// Quotes are ephemeral and must not be cached by callers.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// Normalize upper-cases and trims a user supplied symbol
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
