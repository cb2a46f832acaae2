// Package risk converts account value and risk tolerance into position
// sizes and enforces the desk's account-level guards: max open positions
// and max daily drawdown.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds risk management configuration.
type Config struct {
	MaxRiskPerTrade   float64 // percentage of account value to risk per trade
	MaxDailyDrawdown  float64 // max daily loss percentage before trading stops
	MaxOpenPositions  int     // maximum concurrent positions
	BuyingPowerFactor float64 // fraction of buying power a single entry may consume (default 1.0)
}

// Manager handles position sizing and account-level risk checks.
type Manager struct {
	mu            sync.RWMutex
	config        Config
	logger        zerolog.Logger
	accountValue  float64
	buyingPower   float64
	dailyPnL      float64
	dailyReset    time.Time
	openPositions int
	now           func() time.Time
}

// NewManager creates a risk manager.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	if config.BuyingPowerFactor <= 0 {
		config.BuyingPowerFactor = 1.0
	}
	m := &Manager{
		config: config,
		logger: logger.With().Str("component", "RiskManager").Logger(),
		now:    time.Now,
	}
	m.dailyReset = m.now().Truncate(24 * time.Hour)
	return m
}

// UpdateAccount records the latest account snapshot from the broker.
func (m *Manager) UpdateAccount(netLiquidation, buyingPower float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountValue = netLiquidation
	m.buyingPower = buyingPower
}

// AccountValue returns the last reported net liquidation value.
func (m *Manager) AccountValue() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountValue
}

// CanOpenPosition checks whether a new position may be opened. When refused
// the second return value describes why.
func (m *Manager) CanOpenPosition() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxOpenPositions > 0 && m.openPositions >= m.config.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", m.openPositions, m.config.MaxOpenPositions)
	}

	m.checkDailyResetLocked()
	if m.accountValue > 0 && m.config.MaxDailyDrawdown > 0 {
		drawdownPercent := (m.dailyPnL / m.accountValue) * 100
		if drawdownPercent <= -m.config.MaxDailyDrawdown {
			return false, fmt.Sprintf("daily drawdown limit reached (%.2f%%)", drawdownPercent)
		}
	}

	return true, ""
}

// SharesFor sizes an entry in whole shares: the dollar amount put at risk is
// riskPercent of the account value, divided by the per-share risk distance,
// then capped so the notional cannot exceed the allowed slice of buying
// power. Returns 0 when the inputs cannot produce a meaningful size.
func (m *Manager) SharesFor(entryPrice, stopLoss, riskPercent float64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if entryPrice <= 0 || stopLoss <= 0 || m.accountValue <= 0 {
		return 0
	}
	riskPerShare := math.Abs(entryPrice - stopLoss)
	if riskPerShare == 0 {
		return 0
	}
	if riskPercent <= 0 {
		riskPercent = m.config.MaxRiskPerTrade
	}

	riskAmount := m.accountValue * riskPercent / 100
	shares := int(math.Floor(riskAmount / riskPerShare))

	if m.buyingPower > 0 {
		maxNotional := m.buyingPower * m.config.BuyingPowerFactor
		if limit := int(math.Floor(maxNotional / entryPrice)); shares > limit {
			shares = limit
		}
	}
	if shares < 0 {
		shares = 0
	}

	m.logger.Debug().
		Float64("account_value", m.accountValue).
		Float64("risk_percent", riskPercent).
		Float64("entry_price", entryPrice).
		Float64("stop_loss", stopLoss).
		Int("shares", shares).
		Msg("Position sized")

	return shares
}

// RegisterOpen records a position opening.
func (m *Manager) RegisterOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
}

// RegisterClose records a position closing and books its realized P&L
// against the daily total.
func (m *Manager) RegisterClose(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openPositions--
	if m.openPositions < 0 {
		m.openPositions = 0
	}

	m.checkDailyResetLocked()
	m.dailyPnL += pnl
}

// SeedDailyPnL replaces today's booked P&L with a value rehydrated from the
// trade journal, so the drawdown check survives a process restart.
func (m *Manager) SeedDailyPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDailyResetLocked()
	m.dailyPnL = pnl
}

// DailyPnL returns the realized P&L booked today.
func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

// OpenPositionCount returns the number of registered open positions.
func (m *Manager) OpenPositionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openPositions
}

// checkDailyResetLocked zeroes the daily P&L on the first touch of a new
// day. Caller holds the write lock.
func (m *Manager) checkDailyResetLocked() {
	today := m.now().Truncate(24 * time.Hour)
	if today.After(m.dailyReset) {
		m.dailyPnL = 0
		m.dailyReset = today
	}
}

// Metrics returns the current risk state for the status surface.
func (m *Manager) Metrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	drawdownPercent := 0.0
	if m.accountValue > 0 {
		drawdownPercent = (m.dailyPnL / m.accountValue) * 100
	}

	return map[string]interface{}{
		"account_value":          m.accountValue,
		"buying_power":           m.buyingPower,
		"daily_pnl":              m.dailyPnL,
		"daily_drawdown_percent": drawdownPercent,
		"open_positions":         m.openPositions,
		"max_positions":          m.config.MaxOpenPositions,
		"max_risk_per_trade":     m.config.MaxRiskPerTrade,
		"max_daily_drawdown":     m.config.MaxDailyDrawdown,
	}
}
