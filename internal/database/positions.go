package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// Position retrieves one holding of an account
func (db *DB) Position(ctx context.Context, username, symbol string) (*models.Position, error) {
	query := `
		SELECT username, symbol, name, shares, price, total, updated_at
		FROM positions
		WHERE username = $1 AND symbol = $2
	`
	return scanPosition(db.conn.QueryRowContext(ctx, query, username, symbol))
}

// Positions retrieves all holdings of an account ordered by symbol
func (db *DB) Positions(ctx context.Context, username string) ([]*models.Position, error) {
	query := `
		SELECT username, symbol, name, shares, price, total, updated_at
		FROM positions
		WHERE username = $1
		ORDER BY symbol
	`
	rows, err := db.conn.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []*models.Position{}
	for rows.Next() {
		var p models.Position
		if err := scanPositionInto(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

// HeldShares returns the share count implied by the transaction history and
// the share count stored on the position, for reconciliation. A missing
// position counts as zero shares.
func (db *DB) HeldShares(ctx context.Context, username, symbol string) (fromHistory, fromPosition int64, err error) {
	query := `
		SELECT
			COALESCE((
				SELECT SUM(CASE WHEN trade_type = 'SALE' THEN -shares ELSE shares END)
				FROM transactions
				WHERE username = $1 AND symbol = $2
			), 0),
			COALESCE((
				SELECT shares FROM positions WHERE username = $1 AND symbol = $2
			), 0)
	`
	err = db.conn.QueryRowContext(ctx, query, username, symbol).Scan(&fromHistory, &fromPosition)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reconcile position: %w", err)
	}
	return fromHistory, fromPosition, nil
}

func scanPosition(row *sql.Row) (*models.Position, error) {
	var p models.Position
	err := scanPositionInto(row, &p)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNoSuchPosition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &p, nil
}

func scanPositionInto(row rowScanner, p *models.Position) error {
	return row.Scan(&p.Username, &p.Symbol, &p.Name, &p.Shares, &p.Price, &p.Total, &p.UpdatedAt)
}
