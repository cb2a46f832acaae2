// Package broker defines the in-process seam to the broker gateway glue.
// The core consumes quotes, bars and account values through MarketData and
// hands finished order requests to an OrderSubmitter; everything behind
// these interfaces (connection handling, wire protocol, reconnection)
// lives outside this repository.
package broker

import (
	"context"
	"errors"
	"time"

	"ib-trading-desk/internal/order"
	"ib-trading-desk/internal/pricing"
)

// ErrNoData is returned when the gateway has no market data for a symbol.
var ErrNoData = errors.New("no market data available")

// AccountSummary is the broker's account snapshot.
type AccountSummary struct {
	Account        string  `json:"account"`
	NetLiquidation float64 `json:"net_liquidation"`
	BuyingPower    float64 `json:"buying_power"`
}

// MarketData supplies market and account snapshots from the gateway.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (pricing.Quote, error)
	FiveMinuteBars(ctx context.Context, symbol string) ([]pricing.Bar, error)
	DailyBars(ctx context.Context, symbol string) ([]pricing.Bar, error)
	AccountSummary(ctx context.Context) (AccountSummary, error)
}

// PlacedOrder is one leg accepted by the broker.
type PlacedOrder struct {
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Leg           string    `json:"leg"`
	Quantity      int       `json:"quantity"`
	Price         float64   `json:"price"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Bracket is the full set of legs placed for one order request: the entry,
// its stop loss, and one or more take-profit exits sharing a chain ID.
type Bracket struct {
	BaseID string        `json:"base_id"`
	Entry  PlacedOrder   `json:"entry"`
	Stop   PlacedOrder   `json:"stop"`
	Exits  []PlacedOrder `json:"exits"`
}

// OrderIDs returns every broker order ID in the bracket.
func (b *Bracket) OrderIDs() []string {
	ids := make([]string, 0, len(b.Exits)+2)
	ids = append(ids, b.Entry.OrderID, b.Stop.OrderID)
	for _, exit := range b.Exits {
		ids = append(ids, exit.OrderID)
	}
	return ids
}

// OrderSubmitter places a validated order request with the broker.
type OrderSubmitter interface {
	Submit(ctx context.Context, req *order.Request) (*Bracket, error)
}
