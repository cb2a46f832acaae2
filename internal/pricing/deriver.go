package pricing

import (
	"math"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/order"
)

// Stop level strategy names, keyed into StopLevels.
const (
	LevelPrior5MinLow    = "prior_5min_low"
	LevelCurrent5MinLow  = "current_5min_low"
	LevelRecent5MinLow   = "recent_5min_low"
	LevelDayLow          = "day_low"
	LevelPriorDayLow     = "prior_day_low"
	LevelPercentFallback = "percent_fallback"
)

// recentBarWindow is the number of trailing 5-minute bars scanned for the
// recent_5min_low candidate.
const recentBarWindow = 3

// StopLevels maps stop strategy names to candidate stop prices. It is
// produced per request for the trader to inspect and is not persisted.
type StopLevels map[string]float64

// Config holds the deriver's tunables.
type Config struct {
	RewardRiskRatio    float64 // take profit distance as a multiple of risk (default 2.0)
	FallbackPercent    float64 // stop distance % when no bar data exists (default 2.0)
	MinStopPercent     float64 // stop distances under this % of entry get widened (default 0.3)
	ExtraBufferPercent float64 // additional widening % applied to too-tight stops (default 0.2)
	MinTargetPrice     float64 // absolute take profit floor (default 0.01)
	MaxTargetPrice     float64 // absolute take profit ceiling (default 5000)
}

// DefaultConfig returns the standard deriver configuration.
func DefaultConfig() Config {
	return Config{
		RewardRiskRatio:    2.0,
		FallbackPercent:    2.0,
		MinStopPercent:     0.3,
		ExtraBufferPercent: 0.2,
		MinTargetPrice:     0.01,
		MaxTargetPrice:     5000,
	}
}

// Deriver turns quotes and historical bars into directionally correct entry,
// stop and target recommendations.
type Deriver struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDeriver creates a Deriver. Zero config fields fall back to defaults.
func NewDeriver(cfg Config, logger zerolog.Logger) *Deriver {
	def := DefaultConfig()
	if cfg.RewardRiskRatio <= 0 {
		cfg.RewardRiskRatio = def.RewardRiskRatio
	}
	if cfg.FallbackPercent <= 0 {
		cfg.FallbackPercent = def.FallbackPercent
	}
	if cfg.MinStopPercent <= 0 {
		cfg.MinStopPercent = def.MinStopPercent
	}
	if cfg.ExtraBufferPercent <= 0 {
		cfg.ExtraBufferPercent = def.ExtraBufferPercent
	}
	if cfg.MinTargetPrice <= 0 {
		cfg.MinTargetPrice = def.MinTargetPrice
	}
	if cfg.MaxTargetPrice <= 0 {
		cfg.MaxTargetPrice = def.MaxTargetPrice
	}
	return &Deriver{
		cfg:    cfg,
		logger: logger.With().Str("component", "PriceDeriver").Logger(),
	}
}

// EntryPrice picks the entry price for a direction from a quote: the ask
// for BUY and the bid for SELL, falling back to last, then midpoint, then
// close. Returns 0 and false when the quote has no usable price at all.
func (d *Deriver) EntryPrice(direction order.Direction, q Quote) (float64, bool) {
	switch direction {
	case order.DirectionBuy:
		if validPrice(q.Ask) {
			return q.Ask, true
		}
	case order.DirectionSell:
		if validPrice(q.Bid) {
			return q.Bid, true
		}
	}
	if ref := q.Ref(); validPrice(ref) {
		return ref, true
	}
	return 0, false
}

// ComputeStopLevels collects every candidate stop price available from the
// bar series. Missing inputs simply leave their keys absent; the percentage
// fallback is always present when currentPrice is valid.
func (d *Deriver) ComputeStopLevels(direction order.Direction, currentPrice float64, fiveMin, daily []Bar) StopLevels {
	levels := make(StopLevels)

	if n := len(fiveMin); n > 0 {
		levels[LevelCurrent5MinLow] = fiveMin[n-1].Low
		if n > 1 {
			levels[LevelPrior5MinLow] = fiveMin[n-2].Low
		}
		recent := fiveMin
		if n > recentBarWindow {
			recent = fiveMin[n-recentBarWindow:]
		}
		low := recent[0].Low
		for _, b := range recent[1:] {
			if b.Low < low {
				low = b.Low
			}
		}
		levels[LevelRecent5MinLow] = low
	}

	if n := len(daily); n > 0 {
		levels[LevelDayLow] = daily[n-1].Low
		if n > 1 {
			levels[LevelPriorDayLow] = daily[n-2].Low
		}
	}

	if validPrice(currentPrice) {
		if direction == order.DirectionSell {
			levels[LevelPercentFallback] = currentPrice * (1 + d.cfg.FallbackPercent/100)
		} else {
			levels[LevelPercentFallback] = currentPrice * (1 - d.cfg.FallbackPercent/100)
		}
	}

	return levels
}

// DeriveStop picks the stop-loss price for an entry. For BUY it takes the
// lower (more conservative) of the prior and current 5-minute bar lows; for
// SELL the higher. With no bar data it falls back to a percentage stop. The
// raw level then gets the smart tick adjustment and, if the resulting stop
// sits closer than MinStopPercent to the entry, an extra widening buffer.
// The chosen strategy name is returned alongside the price.
func (d *Deriver) DeriveStop(direction order.Direction, entryPrice float64, fiveMin []Bar) (float64, string) {
	var raw float64
	level := LevelPercentFallback

	prior, hasPrior := barLow(fiveMin, 1)
	current, hasCurrent := barLow(fiveMin, 0)

	switch {
	case hasPrior && hasCurrent:
		if direction == order.DirectionSell {
			raw = math.Max(prior, current)
		} else {
			raw = math.Min(prior, current)
		}
		level = LevelPrior5MinLow
		if raw == current {
			level = LevelCurrent5MinLow
		}
	case hasPrior:
		raw, level = prior, LevelPrior5MinLow
	case hasCurrent:
		raw, level = current, LevelCurrent5MinLow
	default:
		if direction == order.DirectionSell {
			raw = entryPrice * (1 + d.cfg.FallbackPercent/100)
		} else {
			raw = entryPrice * (1 - d.cfg.FallbackPercent/100)
		}
		d.logger.Debug().
			Float64("entry_price", entryPrice).
			Float64("fallback_stop", raw).
			Msg("No bar data available, using percentage stop")
	}

	stop := SmartAdjust(raw, entryPrice, direction)

	// A stop within a fraction of a percent of entry is statistically
	// meaningless; push it out by the extra buffer.
	if entryPrice > 0 {
		distancePercent := math.Abs(entryPrice-stop) / entryPrice * 100
		if distancePercent < d.cfg.MinStopPercent {
			buffer := entryPrice * d.cfg.ExtraBufferPercent / 100
			if direction == order.DirectionSell {
				stop += buffer
			} else {
				stop -= buffer
			}
			d.logger.Debug().
				Float64("distance_percent", distancePercent).
				Float64("widened_stop", stop).
				Msg("Stop too tight, widened by extra buffer")
		}
	}

	return stop, level
}

// SmartAdjust nudges a raw bar low one tick past itself so the stop sits
// strictly beyond the level instead of exactly at it: one cent for entries
// at or above $1, a hundredth of a cent below.
func SmartAdjust(rawStop, entryPrice float64, direction order.Direction) float64 {
	tick := 0.01
	if entryPrice < 1.00 {
		tick = 0.0001
	}
	if direction == order.DirectionSell {
		return rawStop + tick
	}
	return rawStop - tick
}

// DeriveTarget computes the take-profit price from the entry/stop risk
// distance and the configured reward/risk ratio, clamped to the absolute
// target bounds to guard against degenerate inputs.
func (d *Deriver) DeriveTarget(direction order.Direction, entryPrice, stopLoss float64) float64 {
	risk := math.Abs(entryPrice - stopLoss)
	var target float64
	if direction == order.DirectionSell {
		target = entryPrice - risk*d.cfg.RewardRiskRatio
	} else {
		target = entryPrice + risk*d.cfg.RewardRiskRatio
	}

	if target < d.cfg.MinTargetPrice {
		target = d.cfg.MinTargetPrice
	} else if target > d.cfg.MaxTargetPrice {
		target = d.cfg.MaxTargetPrice
	}
	return target
}

// Suggestion bundles a complete entry/stop/target recommendation for one
// symbol and direction.
type Suggestion struct {
	Direction  order.Direction `json:"direction"`
	EntryPrice float64         `json:"entry_price"`
	StopLoss   float64         `json:"stop_loss"`
	TakeProfit float64         `json:"take_profit"`
	StopLevel  string          `json:"stop_level"`
	Levels     StopLevels      `json:"levels"`
}

// Suggest derives a full recommendation from a quote and the available bar
// history. Returns false only when the quote carries no usable price; bar
// gaps degrade to percentage estimates.
func (d *Deriver) Suggest(direction order.Direction, q Quote, fiveMin, daily []Bar) (Suggestion, bool) {
	entry, ok := d.EntryPrice(direction, q)
	if !ok {
		return Suggestion{}, false
	}

	stop, level := d.DeriveStop(direction, entry, fiveMin)
	return Suggestion{
		Direction:  direction,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: d.DeriveTarget(direction, entry, stop),
		StopLevel:  level,
		Levels:     d.ComputeStopLevels(direction, q.Ref(), fiveMin, daily),
	}, true
}

// barLow returns the low of the bar offset bars back from the end of the
// series (0 = last, 1 = second to last).
func barLow(bars []Bar, offset int) (float64, bool) {
	idx := len(bars) - 1 - offset
	if idx < 0 {
		return 0, false
	}
	low := bars[idx].Low
	if !validPrice(low) {
		return 0, false
	}
	return low, true
}
