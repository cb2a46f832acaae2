// Package order builds validated bracket order requests for submission
// to the broker gateway.
package order

// Direction is the order side.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Valid reports whether the direction is a known side.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Type is the entry order type.
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStopLimit Type = "STOP_LIMIT"
)

// Valid reports whether the order type is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeStopLimit:
		return true
	}
	return false
}

// Target is one scaled exit of a multi-target bracket.
// Quantity is derived at build time from the order quantity and Percent.
type Target struct {
	Price    float64 `json:"price"`
	Percent  float64 `json:"percent"`
	Quantity int     `json:"quantity"`
}

// Request is a fully validated, internally consistent order request.
// It is immutable once returned by Builder.Build and is handed off to the
// order submission collaborator.
type Request struct {
	Symbol      string    `json:"symbol"`
	Quantity    int       `json:"quantity"`
	Direction   Direction `json:"direction"`
	OrderType   Type      `json:"order_type"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
	LimitPrice  float64   `json:"limit_price,omitempty"`
	Targets     []Target  `json:"targets,omitempty"`
	RiskPercent float64   `json:"risk_percent"`
	Account     string    `json:"account,omitempty"`
}

// RiskPerShare returns the initial dollar risk per share.
func (r *Request) RiskPerShare() float64 {
	d := r.EntryPrice - r.StopLoss
	if d < 0 {
		return -d
	}
	return d
}

// HasTargets reports whether the request uses scaled exit targets instead of
// a single take profit.
func (r *Request) HasTargets() bool {
	return len(r.Targets) > 0
}
