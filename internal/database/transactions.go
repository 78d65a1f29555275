package database

import (
	"context"
	"fmt"

	"github.com/trogers1052/paper-trader/internal/models"
)

// Transactions retrieves an account's history, most recent first.
// limit <= 0 returns every entry.
func (db *DB) Transactions(ctx context.Context, username string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, username, symbol, shares, price, trade_type, executed_at
		FROM transactions
		WHERE username = $1
		ORDER BY executed_at DESC, id DESC
	`
	args := []any{username}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.Username, &t.Symbol, &t.Shares, &t.Price, &t.TradeType, &t.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
