package risk

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/position"
)

func newTestTrailing(cfg TrailingConfig) *TrailingStopManager {
	return NewTrailingStopManager(cfg, zerolog.Nop())
}

func TestTrailingStopActivatesAndRaises(t *testing.T) {
	tsm := newTestTrailing(TrailingConfig{Enabled: true, TrailingPercent: 1.0, ActivationPercent: 1.5})
	tsm.Track("AAPL", position.DirectionLong, 100.00, 98.00)

	// Below activation threshold: nothing moves.
	if update := tsm.UpdatePrice("AAPL", 101.00); update != nil {
		t.Errorf("unexpected update before activation: %+v", update)
	}

	// +2% activates trailing; stop ratchets to 1% under the high water mark.
	update := tsm.UpdatePrice("AAPL", 102.00)
	if update == nil {
		t.Fatal("expected a stop update after activation")
	}
	want := 102.00 * 0.99
	if math.Abs(update.NewStopLoss-want) > 1e-9 {
		t.Errorf("Expected stop %.4f, got %.4f", want, update.NewStopLoss)
	}

	// Price retreat must not lower the stop.
	if update := tsm.UpdatePrice("AAPL", 101.50); update != nil && !update.Triggered {
		t.Errorf("stop should never loosen: %+v", update)
	}
}

func TestTrailingStopTriggerLong(t *testing.T) {
	tsm := newTestTrailing(TrailingConfig{Enabled: true, TrailingPercent: 1.0, ActivationPercent: 1.0})
	tsm.Track("AAPL", position.DirectionLong, 100.00, 98.00)

	update := tsm.UpdatePrice("AAPL", 97.50)
	if update == nil || !update.Triggered {
		t.Fatalf("expected trigger at 97.50, got %+v", update)
	}
	if update.TriggerPrice != 97.50 {
		t.Errorf("Expected trigger price 97.50, got %.2f", update.TriggerPrice)
	}
}

func TestTrailingStopShortLowers(t *testing.T) {
	tsm := newTestTrailing(TrailingConfig{Enabled: true, TrailingPercent: 1.0, ActivationPercent: 1.0})
	tsm.Track("TSLA", position.DirectionShort, 200.00, 204.00)

	update := tsm.UpdatePrice("TSLA", 196.00) // -2% activates
	if update == nil {
		t.Fatal("expected stop update for short")
	}
	want := 196.00 * 1.01
	if math.Abs(update.NewStopLoss-want) > 1e-9 {
		t.Errorf("Expected stop %.4f, got %.4f", want, update.NewStopLoss)
	}
	if update.NewStopLoss >= 204.00 {
		t.Error("short stop should tighten downward")
	}
}

func TestTrailingStopUntrackedSymbol(t *testing.T) {
	tsm := newTestTrailing(TrailingConfig{Enabled: true})

	if update := tsm.UpdatePrice("GME", 10.00); update != nil {
		t.Errorf("expected nil for untracked symbol, got %+v", update)
	}

	if _, ok := tsm.CurrentStopLoss("GME"); ok {
		t.Error("expected no stop for untracked symbol")
	}
}
