package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// CreateAccount inserts a new account
func (db *DB) CreateAccount(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (username, hash, cash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := db.conn.QueryRowContext(ctx, query, a.Username, a.PasswordHash, a.Cash).
		Scan(&a.ID, &a.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ledger.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Account retrieves an account by username
func (db *DB) Account(ctx context.Context, username string) (*models.Account, error) {
	query := `
		SELECT id, username, hash, cash, created_at
		FROM accounts
		WHERE username = $1
	`
	var a models.Account
	err := db.conn.QueryRowContext(ctx, query, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Cash, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ResetAccount deletes the account's positions and history and sets its cash,
// all in one transaction
func (db *DB) ResetAccount(ctx context.Context, username string, cash decimal.Decimal) error {
	return db.inAccountTx(ctx, username, func(atx *accountTx) error {
		if _, err := atx.tx.ExecContext(ctx, `DELETE FROM positions WHERE username = $1`, username); err != nil {
			return fmt.Errorf("failed to delete positions: %w", err)
		}
		if _, err := atx.tx.ExecContext(ctx, `DELETE FROM transactions WHERE username = $1`, username); err != nil {
			return fmt.Errorf("failed to delete transactions: %w", err)
		}
		return atx.SetCash(ctx, cash)
	})
}
