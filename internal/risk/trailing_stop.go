package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/position"
)

// TrailingConfig holds trailing stop configuration.
type TrailingConfig struct {
	Enabled           bool    // enable trailing stops
	TrailingPercent   float64 // distance from the water mark
	ActivationPercent float64 // profit % required before trailing engages
}

// TrailingStopManager ratchets stop losses behind favorable price movement.
// Stops only ever tighten; the resulting updates are fed back into the
// position tracker by the caller.
type TrailingStopManager struct {
	mu        sync.RWMutex
	config    TrailingConfig
	logger    zerolog.Logger
	positions map[string]*TrailingState
}

// TrailingState tracks one position's trailing stop.
type TrailingState struct {
	Symbol           string
	Direction        position.Direction
	EntryPrice       float64
	CurrentStopLoss  float64
	OriginalStopLoss float64
	HighWaterMark    float64 // highest price since entry (longs)
	LowWaterMark     float64 // lowest price since entry (shorts)
	Activated        bool
	LastUpdate       time.Time
}

// StopUpdate reports a stop move or a stop trigger for one symbol.
type StopUpdate struct {
	Symbol       string
	OldStopLoss  float64
	NewStopLoss  float64
	Triggered    bool
	TriggerPrice float64
}

// NewTrailingStopManager creates a trailing stop manager.
func NewTrailingStopManager(config TrailingConfig, logger zerolog.Logger) *TrailingStopManager {
	return &TrailingStopManager{
		config:    config,
		logger:    logger.With().Str("component", "TrailingStop").Logger(),
		positions: make(map[string]*TrailingState),
	}
}

// Track starts trailing a position.
func (tsm *TrailingStopManager) Track(symbol string, dir position.Direction, entryPrice, stopLoss float64) {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()

	tsm.positions[symbol] = &TrailingState{
		Symbol:           symbol,
		Direction:        dir,
		EntryPrice:       entryPrice,
		CurrentStopLoss:  stopLoss,
		OriginalStopLoss: stopLoss,
		HighWaterMark:    entryPrice,
		LowWaterMark:     entryPrice,
		LastUpdate:       time.Now(),
	}

	tsm.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(dir)).
		Float64("entry_price", entryPrice).
		Float64("stop_loss", stopLoss).
		Msg("Trailing stop tracking started")
}

// Untrack stops trailing a position.
func (tsm *TrailingStopManager) Untrack(symbol string) {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()
	delete(tsm.positions, symbol)
}

// UpdatePrice feeds a new price into the trailing logic. Returns a
// StopUpdate when the stop moved or triggered, nil otherwise.
func (tsm *TrailingStopManager) UpdatePrice(symbol string, currentPrice float64) *StopUpdate {
	tsm.mu.Lock()
	defer tsm.mu.Unlock()

	state, exists := tsm.positions[symbol]
	if !exists {
		return nil
	}

	var update *StopUpdate
	if state.Direction == position.DirectionShort {
		update = tsm.updateShort(state, currentPrice)
	} else {
		update = tsm.updateLong(state, currentPrice)
	}

	state.LastUpdate = time.Now()
	return update
}

func (tsm *TrailingStopManager) updateLong(state *TrailingState, currentPrice float64) *StopUpdate {
	if currentPrice <= state.CurrentStopLoss {
		return &StopUpdate{
			Symbol:       state.Symbol,
			OldStopLoss:  state.CurrentStopLoss,
			NewStopLoss:  state.CurrentStopLoss,
			Triggered:    true,
			TriggerPrice: currentPrice,
		}
	}

	if currentPrice > state.HighWaterMark {
		state.HighWaterMark = currentPrice
	}

	profitPercent := (currentPrice - state.EntryPrice) / state.EntryPrice * 100
	if !state.Activated && profitPercent >= tsm.config.ActivationPercent {
		state.Activated = true
		tsm.logger.Info().
			Str("symbol", state.Symbol).
			Float64("profit_percent", profitPercent).
			Msg("Trailing stop activated")
	}

	if state.Activated && tsm.config.Enabled {
		newStop := state.HighWaterMark * (1 - tsm.config.TrailingPercent/100)

		// Only ever move the stop up.
		if newStop > state.CurrentStopLoss {
			oldStop := state.CurrentStopLoss
			state.CurrentStopLoss = newStop

			tsm.logger.Info().
				Str("symbol", state.Symbol).
				Float64("old_stop", oldStop).
				Float64("new_stop", newStop).
				Float64("high_water_mark", state.HighWaterMark).
				Msg("Trailing stop raised")

			return &StopUpdate{
				Symbol:      state.Symbol,
				OldStopLoss: oldStop,
				NewStopLoss: newStop,
			}
		}
	}

	return nil
}

func (tsm *TrailingStopManager) updateShort(state *TrailingState, currentPrice float64) *StopUpdate {
	if currentPrice >= state.CurrentStopLoss {
		return &StopUpdate{
			Symbol:       state.Symbol,
			OldStopLoss:  state.CurrentStopLoss,
			NewStopLoss:  state.CurrentStopLoss,
			Triggered:    true,
			TriggerPrice: currentPrice,
		}
	}

	if currentPrice < state.LowWaterMark {
		state.LowWaterMark = currentPrice
	}

	profitPercent := (state.EntryPrice - currentPrice) / state.EntryPrice * 100
	if !state.Activated && profitPercent >= tsm.config.ActivationPercent {
		state.Activated = true
		tsm.logger.Info().
			Str("symbol", state.Symbol).
			Float64("profit_percent", profitPercent).
			Msg("Trailing stop activated for short")
	}

	if state.Activated && tsm.config.Enabled {
		newStop := state.LowWaterMark * (1 + tsm.config.TrailingPercent/100)

		// Only ever move the stop down for shorts.
		if newStop < state.CurrentStopLoss {
			oldStop := state.CurrentStopLoss
			state.CurrentStopLoss = newStop

			tsm.logger.Info().
				Str("symbol", state.Symbol).
				Float64("old_stop", oldStop).
				Float64("new_stop", newStop).
				Float64("low_water_mark", state.LowWaterMark).
				Msg("Trailing stop lowered")

			return &StopUpdate{
				Symbol:      state.Symbol,
				OldStopLoss: oldStop,
				NewStopLoss: newStop,
			}
		}
	}

	return nil
}

// State returns a copy of a symbol's trailing state, or nil.
func (tsm *TrailingStopManager) State(symbol string) *TrailingState {
	tsm.mu.RLock()
	defer tsm.mu.RUnlock()

	if state, exists := tsm.positions[symbol]; exists {
		cp := *state
		return &cp
	}
	return nil
}

// CurrentStopLoss returns the live stop for a symbol.
func (tsm *TrailingStopManager) CurrentStopLoss(symbol string) (float64, bool) {
	tsm.mu.RLock()
	defer tsm.mu.RUnlock()

	if state, exists := tsm.positions[symbol]; exists {
		return state.CurrentStopLoss, true
	}
	return 0, false
}
