package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
)

// WithAccount runs fn inside one SQL transaction holding a row lock on the
// account, so settlements for the same account serialize and see each
// other's committed effects.
func (db *DB) WithAccount(ctx context.Context, username string, fn func(tx ledger.AccountTx) error) error {
	return db.inAccountTx(ctx, username, func(atx *accountTx) error {
		return fn(atx)
	})
}

func (db *DB) inAccountTx(ctx context.Context, username string, fn func(atx *accountTx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cash decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT cash FROM accounts WHERE username = $1 FOR UPDATE`, username,
	).Scan(&cash)
	if err == sql.ErrNoRows {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	if err := fn(&accountTx{tx: tx, username: username, cash: cash}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// accountTx implements ledger.AccountTx on a locked account
type accountTx struct {
	tx       *sql.Tx
	username string
	cash     decimal.Decimal
}

func (a *accountTx) Cash(ctx context.Context) (decimal.Decimal, error) {
	return a.cash, nil
}

func (a *accountTx) SetCash(ctx context.Context, cash decimal.Decimal) error {
	_, err := a.tx.ExecContext(ctx,
		`UPDATE accounts SET cash = $2 WHERE username = $1`, a.username, cash,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash: %w", err)
	}
	a.cash = cash
	return nil
}

func (a *accountTx) Position(ctx context.Context, symbol string) (*models.Position, error) {
	query := `
		SELECT username, symbol, name, shares, price, total, updated_at
		FROM positions
		WHERE username = $1 AND symbol = $2
	`
	return scanPosition(a.tx.QueryRowContext(ctx, query, a.username, symbol))
}

func (a *accountTx) SavePosition(ctx context.Context, p *models.Position) error {
	query := `
		INSERT INTO positions (username, symbol, name, shares, price, total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username, symbol) DO UPDATE SET
			name = EXCLUDED.name,
			shares = EXCLUDED.shares,
			price = EXCLUDED.price,
			total = EXCLUDED.total,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := a.tx.ExecContext(ctx, query,
		a.username, p.Symbol, p.Name, p.Shares, p.Price, p.Total, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	p.Username = a.username
	p.UpdatedAt = now
	return nil
}

func (a *accountTx) DeletePosition(ctx context.Context, symbol string) error {
	_, err := a.tx.ExecContext(ctx,
		`DELETE FROM positions WHERE username = $1 AND symbol = $2`, a.username, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

func (a *accountTx) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (username, symbol, shares, price, trade_type, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now()
	}
	err := a.tx.QueryRowContext(ctx, query,
		a.username, t.Symbol, t.Shares, t.Price, t.TradeType, t.ExecutedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	t.Username = a.username
	return nil
}

var _ ledger.Store = (*DB)(nil)
