package order

// TargetParams is one scaled exit in a Params payload.
type TargetParams struct {
	Price   float64 `json:"price"`
	Percent float64 `json:"percent"`
}

// Params is the loosely assembled order form the desk UI submits. Zero
// values mean "not provided"; every present field is routed through the
// corresponding Builder setter so the same normalization and validation
// applies on both entry points.
type Params struct {
	Symbol             string         `json:"symbol"`
	Quantity           int            `json:"quantity"`
	Direction          Direction      `json:"direction"`
	OrderType          Type           `json:"order_type"`
	EntryPrice         float64        `json:"entry_price"`
	StopLoss           float64        `json:"stop_loss"`
	TakeProfit         float64        `json:"take_profit"`
	LimitPrice         float64        `json:"limit_price"`
	UseMultipleTargets bool           `json:"use_multiple_targets"`
	ProfitTargets      []TargetParams `json:"profit_targets"`
	RiskPercent        float64        `json:"risk_percent"`
	Account            string         `json:"account"`
}

// BuildFromParams resets the builder, applies every present field from
// params and delegates to Build.
func (b *Builder) BuildFromParams(p Params) (*Request, []string) {
	b.Reset()

	if p.Symbol != "" {
		b.Symbol(p.Symbol)
	}
	if p.Quantity != 0 {
		b.Quantity(p.Quantity)
	}
	if p.Direction != "" {
		b.Direction(p.Direction)
	}
	if p.OrderType != "" {
		b.OrderType(p.OrderType)
	}
	if p.EntryPrice != 0 {
		b.EntryPrice(p.EntryPrice)
	}
	if p.StopLoss != 0 {
		b.StopLoss(p.StopLoss)
	}
	if p.TakeProfit != 0 {
		b.TakeProfit(p.TakeProfit)
	}
	if p.LimitPrice != 0 {
		b.LimitPrice(p.LimitPrice)
	}
	if p.UseMultipleTargets {
		for _, t := range p.ProfitTargets {
			b.AddTarget(t.Price, t.Percent)
		}
	}
	if p.RiskPercent != 0 {
		b.RiskPercent(p.RiskPercent)
	}
	if p.Account != "" {
		b.Account(p.Account)
	}

	return b.Build()
}
