// Package position maintains the open-position ledger: volume-weighted
// entries, partial closes, realized/unrealized P&L and R-multiples. It only
// records outcomes reported to it; it never places or cancels orders.
package position

import (
	"math"
	"time"

	"ib-trading-desk/internal/order"
)

// Direction is the side of a held position. Distinct vocabulary from the
// order's BUY/SELL; translated once when the position is created.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// FromOrderDirection translates an order side into a position direction.
func FromOrderDirection(d order.Direction) Direction {
	if d == order.DirectionSell {
		return DirectionShort
	}
	return DirectionLong
}

// Position is one open or closed holding.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      int       `json:"quantity"`
	TotalQuantity int       `json:"total_quantity"` // cumulative shares filled, never reduced by exits
	EntryPrice    float64   `json:"entry_price"`
	EntryTime     time.Time `json:"entry_time"`
	Direction     Direction `json:"direction"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	RMultiple     float64   `json:"r_multiple"`
	OrderIDs      []string  `json:"order_ids,omitempty"`
	ClosedAt      time.Time `json:"closed_at,omitempty"`
}

// riskPerShare is the initial dollar risk per share implied by the current
// entry and stop. Zero when the stop sits exactly at entry.
func (p *Position) riskPerShare() float64 {
	return math.Abs(p.EntryPrice - p.StopLoss)
}

// pnlFor returns the signed P&L of qty shares exited at price.
func (p *Position) pnlFor(qty int, price float64) float64 {
	pnl := (price - p.EntryPrice) * float64(qty)
	if p.Direction == DirectionShort {
		pnl = -pnl
	}
	return pnl
}

// markPrice recomputes unrealized P&L and R-multiple at the given price.
func (p *Position) markPrice(price float64) {
	p.CurrentPrice = price
	p.UnrealizedPnL = p.pnlFor(p.Quantity, price)

	change := price - p.EntryPrice
	if p.Direction == DirectionShort {
		change = -change
	}
	if risk := p.riskPerShare(); risk > 0 {
		p.RMultiple = change / risk
	} else {
		p.RMultiple = 0
	}
}

// clone returns a copy safe to hand outside the tracker's lock.
func (p *Position) clone() *Position {
	cp := *p
	cp.OrderIDs = append([]string(nil), p.OrderIDs...)
	return &cp
}

// Summary is the per-position view consumed by the reporting surface.
type Summary struct {
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	Quantity      int       `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RMultiple     float64   `json:"r_multiple"`
}
