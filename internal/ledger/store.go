package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// Store is the durable ledger: accounts, positions and transaction history.
type Store interface {
	// Account returns ErrAccountNotFound for an unknown username.
	Account(ctx context.Context, username string) (*models.Account, error)
	// Position returns ErrNoSuchPosition when the account holds no shares of symbol.
	Position(ctx context.Context, username, symbol string) (*models.Position, error)
	// Positions lists the account's holdings ordered by symbol.
	Positions(ctx context.Context, username string) ([]*models.Position, error)
	// Transactions lists history most recent first; limit <= 0 means no limit.
	Transactions(ctx context.Context, username string, limit int) ([]*models.Transaction, error)

	// WithAccount runs fn as one atomic unit scoped to the account. Calls for the
	// same account are serialized; fn's writes are committed only if it returns nil.
	WithAccount(ctx context.Context, username string, fn func(tx AccountTx) error) error
}

// AccountTx is the set of writes available inside WithAccount.
type AccountTx interface {
	Cash(ctx context.Context) (decimal.Decimal, error)
	SetCash(ctx context.Context, cash decimal.Decimal) error
	Position(ctx context.Context, symbol string) (*models.Position, error)
	SavePosition(ctx context.Context, p *models.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	AppendTransaction(ctx context.Context, t *models.Transaction) error
}

// Publisher receives settled trades after commit.
type Publisher interface {
	PublishTradeSettled(ctx context.Context, event *models.TradeEvent) error
}
