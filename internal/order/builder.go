package order

import (
	"fmt"
	"math"
	"strings"
)

// Clamping bounds applied by the fluent setters. Inputs outside these ranges
// are pulled back in immediately rather than rejected at build time.
const (
	MinPrice       = 0.01
	MinQuantity    = 1
	MinRiskPercent = 0.1
	MaxRiskPercent = 10.0
)

// Builder accumulates order parameters via chained setters and produces
// either a valid Request or the full list of validation problems. Setters
// never fail; all validation is deferred to Build.
type Builder struct {
	symbol      string
	quantity    int
	hasQuantity bool
	direction   Direction
	orderType   Type
	entryPrice  float64
	hasEntry    bool
	stopLoss    float64
	hasStop     bool
	takeProfit  float64
	hasTP       bool
	limitPrice  float64
	hasLimit    bool
	targets     []Target
	riskPercent float64
	account     string
}

// NewBuilder returns an empty Builder with the default order type and risk
// percentage.
func NewBuilder() *Builder {
	b := &Builder{}
	b.Reset()
	return b
}

// Reset clears all accumulated state so the builder can be reused.
func (b *Builder) Reset() *Builder {
	*b = Builder{
		orderType:   TypeLimit,
		riskPercent: 1.0,
	}
	return b
}

// Symbol sets the instrument symbol, trimmed and upper-cased.
func (b *Builder) Symbol(symbol string) *Builder {
	b.symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return b
}

// Quantity sets the share count, clamped to at least MinQuantity.
func (b *Builder) Quantity(quantity int) *Builder {
	if quantity < MinQuantity {
		quantity = MinQuantity
	}
	b.quantity = quantity
	b.hasQuantity = true
	return b
}

// Direction sets the order side.
func (b *Builder) Direction(direction Direction) *Builder {
	b.direction = Direction(strings.ToUpper(strings.TrimSpace(string(direction))))
	return b
}

// OrderType sets the entry order type.
func (b *Builder) OrderType(orderType Type) *Builder {
	b.orderType = Type(strings.ToUpper(strings.TrimSpace(string(orderType))))
	return b
}

// EntryPrice sets the entry price, clamped to at least MinPrice.
func (b *Builder) EntryPrice(price float64) *Builder {
	b.entryPrice = clampPrice(price)
	b.hasEntry = true
	return b
}

// StopLoss sets the stop loss price, clamped to at least MinPrice.
func (b *Builder) StopLoss(price float64) *Builder {
	b.stopLoss = clampPrice(price)
	b.hasStop = true
	return b
}

// TakeProfit sets a single take profit price, clamped to at least MinPrice.
// Mutually exclusive with AddTarget; the conflict is reported at build time.
func (b *Builder) TakeProfit(price float64) *Builder {
	b.takeProfit = clampPrice(price)
	b.hasTP = true
	return b
}

// LimitPrice sets the limit price for STOP_LIMIT entries.
func (b *Builder) LimitPrice(price float64) *Builder {
	b.limitPrice = clampPrice(price)
	b.hasLimit = true
	return b
}

// AddTarget appends a scaled exit target. Percent is clamped to [0, 100];
// the target quantity is derived at build time.
func (b *Builder) AddTarget(price, percent float64) *Builder {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	b.targets = append(b.targets, Target{Price: clampPrice(price), Percent: percent})
	return b
}

// RiskPercent sets the account risk percentage, clamped to
// [MinRiskPercent, MaxRiskPercent].
func (b *Builder) RiskPercent(percent float64) *Builder {
	if percent < MinRiskPercent {
		percent = MinRiskPercent
	} else if percent > MaxRiskPercent {
		percent = MaxRiskPercent
	}
	b.riskPercent = percent
	return b
}

// Account sets the broker account identifier.
func (b *Builder) Account(account string) *Builder {
	b.account = strings.TrimSpace(account)
	return b
}

// Build runs every validation check and returns the assembled Request with a
// nil error list, or a nil Request with every applicable problem described.
// It never returns both a request and errors.
func (b *Builder) Build() (*Request, []string) {
	var errs []string

	if b.symbol == "" {
		errs = append(errs, "symbol is required")
	}
	if !b.hasQuantity {
		errs = append(errs, "quantity is required")
	}
	if b.direction == "" {
		errs = append(errs, "direction is required")
	} else if !b.direction.Valid() {
		errs = append(errs, fmt.Sprintf("direction must be BUY or SELL, got %q", b.direction))
	}
	if !b.orderType.Valid() {
		errs = append(errs, fmt.Sprintf("order type must be MARKET, LIMIT or STOP_LIMIT, got %q", b.orderType))
	}
	if !b.hasEntry {
		errs = append(errs, "entry price is required")
	}
	if !b.hasStop {
		errs = append(errs, "stop loss is required")
	}

	// Directional checks only make sense once the side and prices exist.
	if b.direction.Valid() && b.hasEntry && b.hasStop {
		switch b.direction {
		case DirectionBuy:
			if b.stopLoss >= b.entryPrice {
				errs = append(errs, fmt.Sprintf("stop loss %.4f must be below entry price %.4f for BUY orders", b.stopLoss, b.entryPrice))
			}
		case DirectionSell:
			if b.stopLoss <= b.entryPrice {
				errs = append(errs, fmt.Sprintf("stop loss %.4f must be above entry price %.4f for SELL orders", b.stopLoss, b.entryPrice))
			}
		}
	}

	if b.hasTP && b.direction.Valid() && b.hasEntry {
		switch b.direction {
		case DirectionBuy:
			if b.takeProfit <= b.entryPrice {
				errs = append(errs, fmt.Sprintf("take profit %.4f must be above entry price %.4f for BUY orders", b.takeProfit, b.entryPrice))
			}
		case DirectionSell:
			if b.takeProfit >= b.entryPrice {
				errs = append(errs, fmt.Sprintf("take profit %.4f must be below entry price %.4f for SELL orders", b.takeProfit, b.entryPrice))
			}
		}
	}

	var targets []Target
	if len(b.targets) > 0 {
		if b.hasTP {
			errs = append(errs, "take profit and scaled targets are mutually exclusive")
		}

		total := 0.0
		for _, t := range b.targets {
			total += t.Percent
		}
		if math.Abs(total-100) > 0.01 {
			errs = append(errs, fmt.Sprintf("target percentages must sum to 100, got %.2f", total))
		}

		targets = make([]Target, len(b.targets))
		allocated := 0
		for i, t := range b.targets {
			qty := int(math.Floor(float64(b.quantity) * t.Percent / 100))
			targets[i] = Target{Price: t.Price, Percent: t.Percent, Quantity: qty}
			allocated += qty

			if b.direction.Valid() && b.hasEntry {
				switch b.direction {
				case DirectionBuy:
					if t.Price <= b.entryPrice {
						errs = append(errs, fmt.Sprintf("target %d price %.4f must be above entry price %.4f for BUY orders", i+1, t.Price, b.entryPrice))
					}
				case DirectionSell:
					if t.Price >= b.entryPrice {
						errs = append(errs, fmt.Sprintf("target %d price %.4f must be below entry price %.4f for SELL orders", i+1, t.Price, b.entryPrice))
					}
				}
			}
		}
		// Floor division can strand shares (33/33/34 of 100 floors to
		// 33/33/33); the remainder goes to the last target so exits cover
		// the whole position.
		if remainder := b.quantity - allocated; remainder > 0 && math.Abs(total-100) <= 0.01 {
			targets[len(targets)-1].Quantity += remainder
		}
	}

	if b.orderType == TypeStopLimit && !b.hasLimit {
		errs = append(errs, "limit price is required for STOP_LIMIT orders")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Request{
		Symbol:      b.symbol,
		Quantity:    b.quantity,
		Direction:   b.direction,
		OrderType:   b.orderType,
		EntryPrice:  b.entryPrice,
		StopLoss:    b.stopLoss,
		TakeProfit:  b.takeProfit,
		LimitPrice:  b.limitPrice,
		Targets:     targets,
		RiskPercent: b.riskPercent,
		Account:     b.account,
	}, nil
}

func clampPrice(price float64) float64 {
	if price < MinPrice {
		return MinPrice
	}
	return price
}
