package broker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/pricing"
)

// SimulatedFeed is an in-process MarketData implementation for paper trading
// and development without a gateway connection. Symbols are seeded with a
// reference price; each Tick advances every symbol by a small random walk
// and appends a synthetic 5-minute bar.
type SimulatedFeed struct {
	mu      sync.RWMutex
	symbols map[string]*simSymbol
	account AccountSummary
	rng     *rand.Rand
	logger  zerolog.Logger
}

type simSymbol struct {
	price   float64
	fiveMin []pricing.Bar
	daily   []pricing.Bar
}

// maxSimBars bounds the retained bar history per symbol.
const maxSimBars = 100

// NewSimulatedFeed creates a feed with the given account snapshot.
func NewSimulatedFeed(account AccountSummary, logger zerolog.Logger) *SimulatedFeed {
	return &SimulatedFeed{
		symbols: make(map[string]*simSymbol),
		account: account,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger.With().Str("component", "SimulatedFeed").Logger(),
	}
}

// Seed registers a symbol at a starting price and backfills a short bar
// history around it.
func (f *SimulatedFeed) Seed(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sym := &simSymbol{price: price}
	now := time.Now()
	for i := 12; i > 0; i-- {
		sym.fiveMin = append(sym.fiveMin, f.syntheticBar(price, now.Add(-time.Duration(i)*5*time.Minute)))
	}
	for i := 5; i > 0; i-- {
		bar := f.syntheticBar(price, now.AddDate(0, 0, -i))
		bar.Low = price * (1 - 0.01 - f.rng.Float64()*0.01)
		bar.High = price * (1 + 0.01 + f.rng.Float64()*0.01)
		sym.daily = append(sym.daily, bar)
	}
	f.symbols[symbol] = sym

	f.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("Seeded simulated symbol")
}

// Tick advances every seeded symbol one step of its random walk and rolls a
// new 5-minute bar. Returns the updated last prices.
func (f *SimulatedFeed) Tick() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	prices := make(map[string]float64, len(f.symbols))
	now := time.Now()
	for symbol, sym := range f.symbols {
		// Bounded step of up to 0.2% in either direction.
		sym.price *= 1 + (f.rng.Float64()-0.5)*0.004
		sym.fiveMin = append(sym.fiveMin, f.syntheticBar(sym.price, now))
		if len(sym.fiveMin) > maxSimBars {
			sym.fiveMin = sym.fiveMin[len(sym.fiveMin)-maxSimBars:]
		}
		prices[symbol] = sym.price
	}
	return prices
}

// Quote returns the simulated quote with a one-tick spread.
func (f *SimulatedFeed) Quote(ctx context.Context, symbol string) (pricing.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sym, ok := f.symbols[symbol]
	if !ok {
		return pricing.Quote{}, ErrNoData
	}
	return pricing.Quote{
		Last:  sym.price,
		Bid:   sym.price - 0.01,
		Ask:   sym.price + 0.01,
		Close: sym.price,
	}, nil
}

// FiveMinuteBars returns the synthetic intraday bar history.
func (f *SimulatedFeed) FiveMinuteBars(ctx context.Context, symbol string) ([]pricing.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sym, ok := f.symbols[symbol]
	if !ok {
		return nil, ErrNoData
	}
	bars := make([]pricing.Bar, len(sym.fiveMin))
	copy(bars, sym.fiveMin)
	return bars, nil
}

// DailyBars returns the synthetic daily bar history.
func (f *SimulatedFeed) DailyBars(ctx context.Context, symbol string) ([]pricing.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sym, ok := f.symbols[symbol]
	if !ok {
		return nil, ErrNoData
	}
	bars := make([]pricing.Bar, len(sym.daily))
	copy(bars, sym.daily)
	return bars, nil
}

// AccountSummary returns the configured account snapshot.
func (f *SimulatedFeed) AccountSummary(ctx context.Context) (AccountSummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.account, nil
}

func (f *SimulatedFeed) syntheticBar(price float64, ts time.Time) pricing.Bar {
	low := price * (1 - 0.001 - f.rng.Float64()*0.003)
	high := price * (1 + 0.001 + f.rng.Float64()*0.003)
	return pricing.Bar{
		Open:      price,
		High:      high,
		Low:       low,
		Close:     price,
		Volume:    int64(1000 + f.rng.Intn(9000)),
		Timestamp: ts,
	}
}
