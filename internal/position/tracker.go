package position

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/order"
)

// Tracker is the in-memory position ledger. Operations on symbols with no
// open position return nil; "close what isn't open" is a benign caller
// mistake in a UI-driven flow, not an error.
type Tracker struct {
	mu     sync.RWMutex
	open   map[string]*Position
	closed []*Position
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		open:   make(map[string]*Position),
		logger: logger.With().Str("component", "PositionTracker").Logger(),
		now:    time.Now,
	}
}

// Open records an entry fill. The first fill for a symbol creates the
// position; subsequent same-direction fills average in: the entry price
// becomes the volume-weighted average, quantities sum, and the stop loss is
// replaced only when the new one is more conservative (higher for LONG,
// lower for SHORT) — never relaxed. An opposite-direction fill on an open
// symbol is refused and returns nil.
func (t *Tracker) Open(symbol string, quantity int, entryPrice float64, direction order.Direction, stopLoss, takeProfit float64, orderIDs ...string) *Position {
	if quantity <= 0 || entryPrice <= 0 {
		return nil
	}

	dir := FromOrderDirection(direction)

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.open[symbol]
	if !exists {
		pos = &Position{
			Symbol:        symbol,
			Quantity:      quantity,
			TotalQuantity: quantity,
			EntryPrice:    entryPrice,
			EntryTime:     t.now(),
			Direction:     dir,
			StopLoss:      stopLoss,
			TakeProfit:    takeProfit,
			OrderIDs:      append([]string(nil), orderIDs...),
		}
		pos.markPrice(entryPrice)
		t.open[symbol] = pos

		t.logger.Info().
			Str("symbol", symbol).
			Str("direction", string(dir)).
			Int("quantity", quantity).
			Float64("entry_price", entryPrice).
			Float64("stop_loss", stopLoss).
			Msg("Position opened")
		return pos.clone()
	}

	if pos.Direction != dir {
		t.logger.Warn().
			Str("symbol", symbol).
			Str("open_direction", string(pos.Direction)).
			Str("fill_direction", string(dir)).
			Msg("Ignoring opposite-direction fill on open position")
		return nil
	}

	oldValue := pos.EntryPrice * float64(pos.Quantity)
	newValue := entryPrice * float64(quantity)
	pos.Quantity += quantity
	pos.TotalQuantity += quantity
	pos.EntryPrice = (oldValue + newValue) / float64(pos.Quantity)

	if stopLoss > 0 && moreConservative(dir, stopLoss, pos.StopLoss) {
		pos.StopLoss = stopLoss
	}
	if takeProfit > 0 {
		pos.TakeProfit = takeProfit
	}
	pos.OrderIDs = append(pos.OrderIDs, orderIDs...)
	pos.markPrice(entryPrice)

	t.logger.Info().
		Str("symbol", symbol).
		Int("quantity", pos.Quantity).
		Float64("avg_entry", pos.EntryPrice).
		Msg("Averaged into position")
	return pos.clone()
}

// moreConservative reports whether candidate is a tighter stop than current
// for the direction.
func moreConservative(dir Direction, candidate, current float64) bool {
	if current == 0 {
		return true
	}
	if dir == DirectionShort {
		return candidate < current
	}
	return candidate > current
}

// UpdatePrice pushes a new market price into an open position and recomputes
// unrealized P&L and R-multiple. Returns nil when the symbol has no open
// position.
func (t *Tracker) UpdatePrice(symbol string, price float64) *Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.open[symbol]
	if !exists {
		return nil
	}
	pos.markPrice(price)
	return pos.clone()
}

// MoveStop replaces an open position's stop when the candidate is tighter
// for the direction; looser candidates are ignored. Returns the resulting
// state, or nil when the symbol has no open position.
func (t *Tracker) MoveStop(symbol string, stop float64) *Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.open[symbol]
	if !exists {
		return nil
	}
	if moreConservative(pos.Direction, stop, pos.StopLoss) {
		old := pos.StopLoss
		pos.StopLoss = stop
		if pos.CurrentPrice > 0 {
			pos.markPrice(pos.CurrentPrice)
		}
		t.logger.Info().
			Str("symbol", symbol).
			Float64("old_stop", old).
			Float64("new_stop", stop).
			Msg("Stop moved")
	}
	return pos.clone()
}

// ClosePartial books an exit for part of an open position. The requested
// quantity is clamped to what remains; the realized P&L of the closed slice
// accumulates on the position. When the remaining quantity reaches zero the
// position is archived. Returns the resulting position state, or nil when
// the symbol has no open position.
func (t *Tracker) ClosePartial(symbol string, quantity int, exitPrice float64) *Position {
	if quantity <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.open[symbol]
	if !exists {
		return nil
	}

	if quantity > pos.Quantity {
		quantity = pos.Quantity
	}

	slicePnL := pos.pnlFor(quantity, exitPrice)
	pos.RealizedPnL += slicePnL
	pos.Quantity -= quantity
	pos.markPrice(exitPrice)

	t.logger.Info().
		Str("symbol", symbol).
		Int("closed_quantity", quantity).
		Float64("exit_price", exitPrice).
		Float64("slice_pnl", slicePnL).
		Int("remaining", pos.Quantity).
		Msg("Partial close")

	if pos.Quantity == 0 {
		t.archiveLocked(pos)
	}
	return pos.clone()
}

// Close fully exits an open position at the given price, folding all
// remaining unrealized P&L into realized, and archives it. Returns nil when
// the symbol has no open position.
func (t *Tracker) Close(symbol string, exitPrice float64) *Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.open[symbol]
	if !exists {
		return nil
	}

	pos.RealizedPnL += pos.pnlFor(pos.Quantity, exitPrice)
	pos.Quantity = 0
	pos.markPrice(exitPrice)

	t.logger.Info().
		Str("symbol", symbol).
		Float64("exit_price", exitPrice).
		Float64("realized_pnl", pos.RealizedPnL).
		Msg("Position closed")

	t.archiveLocked(pos)
	return pos.clone()
}

// archiveLocked moves a flat position from the open set to the closed log.
// Caller holds the write lock.
func (t *Tracker) archiveLocked(pos *Position) {
	pos.UnrealizedPnL = 0
	pos.ClosedAt = t.now()
	delete(t.open, pos.Symbol)
	t.closed = append(t.closed, pos)
}

// Get returns a copy of the open position for a symbol, or nil.
func (t *Tracker) Get(symbol string) *Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if pos, exists := t.open[symbol]; exists {
		return pos.clone()
	}
	return nil
}

// OpenPositions returns copies of every open position, ordered by symbol.
func (t *Tracker) OpenPositions() []*Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := make([]*Position, 0, len(t.open))
	for _, pos := range t.open {
		positions = append(positions, pos.clone())
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// ClosedPositions returns copies of the archived positions in close order.
func (t *Tracker) ClosedPositions() []*Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := make([]*Position, len(t.closed))
	for i, pos := range t.closed {
		positions[i] = pos.clone()
	}
	return positions
}

// TotalUnrealizedPnL sums unrealized P&L across all open positions.
func (t *Tracker) TotalUnrealizedPnL() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0.0
	for _, pos := range t.open {
		total += pos.UnrealizedPnL
	}
	return total
}

// TotalRealizedPnL sums realized P&L across open positions (partial closes
// already booked) and the closed log.
func (t *Tracker) TotalRealizedPnL() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0.0
	for _, pos := range t.open {
		total += pos.RealizedPnL
	}
	for _, pos := range t.closed {
		total += pos.RealizedPnL
	}
	return total
}

// Summaries returns the per-position reporting view for every open
// position, ordered by symbol.
func (t *Tracker) Summaries() []Summary {
	positions := t.OpenPositions()
	summaries := make([]Summary, len(positions))
	for i, pos := range positions {
		summaries[i] = Summary{
			Symbol:        pos.Symbol,
			Direction:     pos.Direction,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.EntryPrice,
			CurrentPrice:  pos.CurrentPrice,
			UnrealizedPnL: pos.UnrealizedPnL,
			RMultiple:     pos.RMultiple,
		}
	}
	return summaries
}

// Restore reinstates a previously persisted open position, used when
// reloading tracker state at startup. Existing entries for the symbol are
// replaced.
func (t *Tracker) Restore(pos *Position) {
	if pos == nil || pos.Quantity <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[pos.Symbol] = pos.clone()
}
