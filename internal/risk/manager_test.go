package risk

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager(cfg Config) *Manager {
	return NewManager(cfg, zerolog.Nop())
}

func TestSharesForBasicSizing(t *testing.T) {
	m := newTestManager(Config{MaxRiskPerTrade: 1.0})
	m.UpdateAccount(100_000, 200_000)

	// Risking 1% of 100k = $1000 over a $1.00 stop distance.
	shares := m.SharesFor(50.00, 49.00, 1.0)
	if shares != 1000 {
		t.Errorf("Expected 1000 shares, got %d", shares)
	}
}

func TestSharesForBuyingPowerCap(t *testing.T) {
	m := newTestManager(Config{MaxRiskPerTrade: 2.0})
	m.UpdateAccount(100_000, 10_000)

	// Risk math alone would allow 2000 shares; buying power only covers 200.
	shares := m.SharesFor(50.00, 49.00, 2.0)
	if shares != 200 {
		t.Errorf("Expected buying power cap at 200 shares, got %d", shares)
	}
}

func TestSharesForDegenerateInputs(t *testing.T) {
	m := newTestManager(Config{MaxRiskPerTrade: 1.0})

	if got := m.SharesFor(50.00, 49.00, 1.0); got != 0 {
		t.Errorf("no account value should size 0, got %d", got)
	}

	m.UpdateAccount(100_000, 200_000)
	if got := m.SharesFor(50.00, 50.00, 1.0); got != 0 {
		t.Errorf("zero risk distance should size 0, got %d", got)
	}
	if got := m.SharesFor(0, 49.00, 1.0); got != 0 {
		t.Errorf("zero entry should size 0, got %d", got)
	}
}

func TestSharesForDefaultsToConfiguredRisk(t *testing.T) {
	m := newTestManager(Config{MaxRiskPerTrade: 0.5})
	m.UpdateAccount(100_000, 1_000_000)

	shares := m.SharesFor(50.00, 49.00, 0)
	if shares != 500 {
		t.Errorf("Expected configured 0.5%% risk to size 500 shares, got %d", shares)
	}
}

func TestCanOpenPositionMaxPositions(t *testing.T) {
	m := newTestManager(Config{MaxOpenPositions: 2})
	m.UpdateAccount(100_000, 200_000)

	m.RegisterOpen()
	m.RegisterOpen()

	ok, reason := m.CanOpenPosition()
	if ok {
		t.Fatal("expected refusal at max positions")
	}
	if !strings.Contains(reason, "max positions") {
		t.Errorf("unexpected reason: %s", reason)
	}

	m.RegisterClose(100)
	if ok, _ := m.CanOpenPosition(); !ok {
		t.Error("expected permission after a close")
	}
}

func TestCanOpenPositionDailyDrawdown(t *testing.T) {
	m := newTestManager(Config{MaxOpenPositions: 10, MaxDailyDrawdown: 3.0})
	m.UpdateAccount(100_000, 200_000)

	m.RegisterOpen()
	m.RegisterClose(-3500) // -3.5% of account

	ok, reason := m.CanOpenPosition()
	if ok {
		t.Fatal("expected refusal past daily drawdown limit")
	}
	if !strings.Contains(reason, "drawdown") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestSeedDailyPnLFeedsDrawdownCheck(t *testing.T) {
	m := newTestManager(Config{MaxOpenPositions: 10, MaxDailyDrawdown: 3.0})
	m.UpdateAccount(100_000, 200_000)

	// A restart mid-session restores today's booked losses from the journal.
	m.SeedDailyPnL(-4000)

	if got := m.DailyPnL(); got != -4000 {
		t.Errorf("expected seeded daily PnL -4000, got %.2f", got)
	}
	ok, reason := m.CanOpenPosition()
	if ok {
		t.Fatal("expected refusal past daily drawdown limit after seeding")
	}
	if !strings.Contains(reason, "drawdown") {
		t.Errorf("unexpected reason: %s", reason)
	}

	// Later closes accumulate on top of the seeded value.
	m.RegisterOpen()
	m.RegisterClose(500)
	if got := m.DailyPnL(); got != -3500 {
		t.Errorf("expected daily PnL -3500 after close, got %.2f", got)
	}
}

func TestOpenPositionCountNeverNegative(t *testing.T) {
	m := newTestManager(Config{})

	m.RegisterClose(0)
	if got := m.OpenPositionCount(); got != 0 {
		t.Errorf("count went negative: %d", got)
	}
}
