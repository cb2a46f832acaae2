package database

import (
	"context"
	"fmt"
	"time"

	"ib-trading-desk/internal/position"
)

// TradeRecord is one archived round trip in the journal.
type TradeRecord struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	Quantity    int       `json:"quantity"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	StopLoss    float64   `json:"stop_loss"`
	RealizedPnL float64   `json:"realized_pnl"`
	RMultiple   float64   `json:"r_multiple"`
	OrderIDs    []string  `json:"order_ids"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
}

// Repository provides access to the trade journal.
type Repository struct {
	db *DB
}

// NewRepository creates a trade journal repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the underlying database.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// RecordClosedPosition archives a fully closed position as a journal entry.
// The exit price is taken from the position's last marked price.
func (r *Repository) RecordClosedPosition(ctx context.Context, pos *position.Position) (*TradeRecord, error) {
	record := &TradeRecord{
		Symbol:      pos.Symbol,
		Direction:   string(pos.Direction),
		Quantity:    pos.TotalQuantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.CurrentPrice,
		StopLoss:    pos.StopLoss,
		RealizedPnL: pos.RealizedPnL,
		RMultiple:   pos.RMultiple,
		OrderIDs:    pos.OrderIDs,
		EntryTime:   pos.EntryTime,
		ExitTime:    pos.ClosedAt,
	}

	const q = `
INSERT INTO trades (symbol, direction, quantity, entry_price, exit_price, stop_loss,
	realized_pnl, r_multiple, order_ids, entry_time, exit_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

	err := r.db.Pool.QueryRow(ctx, q,
		record.Symbol, record.Direction, record.Quantity,
		record.EntryPrice, record.ExitPrice, record.StopLoss,
		record.RealizedPnL, record.RMultiple, record.OrderIDs,
		record.EntryTime, record.ExitTime,
	).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trade: %w", err)
	}

	return record, nil
}

// ListTrades returns the most recent journal entries, newest first.
func (r *Repository) ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT id, symbol, direction, quantity, entry_price, exit_price, stop_loss,
	realized_pnl, r_multiple, order_ids, entry_time, exit_time
FROM trades
ORDER BY exit_time DESC
LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		t := &TradeRecord{}
		err := rows.Scan(&t.ID, &t.Symbol, &t.Direction, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.StopLoss,
			&t.RealizedPnL, &t.RMultiple, &t.OrderIDs,
			&t.EntryTime, &t.ExitTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DailyRealizedPnL sums the realized P&L of trades exited on the given day.
func (r *Repository) DailyRealizedPnL(ctx context.Context, day time.Time) (float64, error) {
	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	const q = `
SELECT COALESCE(SUM(realized_pnl), 0)
FROM trades
WHERE exit_time >= $1 AND exit_time < $2`

	var total float64
	if err := r.db.Pool.QueryRow(ctx, q, start, end).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum daily pnl: %w", err)
	}
	return total, nil
}
