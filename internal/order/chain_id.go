package order

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Bracket leg suffixes appended to a chain base ID. An entry order and its
// attached exits share one base ID so fills can be matched back to the
// bracket they belong to.
const (
	LegEntry      = "E"
	LegStopLoss   = "SL"
	LegTakeProfit = "TP"
)

// MaxClientOrderIDLength is the broker's limit on client order IDs.
const MaxClientOrderIDLength = 36

var (
	ErrEmptyBaseID       = errors.New("base ID cannot be empty")
	ErrClientOrderIDLong = errors.New("client order ID exceeds maximum length")
)

// ChainIDGenerator produces structured client order IDs for bracket chains.
// Format: BRK-[DDMMM]-[NNNNN]-[LEG] (e.g. "BRK-15JAN-00001-E"), with the
// daily sequence resetting each calendar day.
type ChainIDGenerator struct {
	mu  sync.Mutex
	day string
	seq int
	now func() time.Time
}

// NewChainIDGenerator creates a generator using the supplied clock, or the
// system clock when now is nil.
func NewChainIDGenerator(now func() time.Time) *ChainIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &ChainIDGenerator{now: now}
}

// Generate returns a new chain's full entry-leg ID and its base ID.
func (g *ChainIDGenerator) Generate() (fullID, baseID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := strings.ToUpper(g.now().Format("02Jan"))
	if day != g.day {
		g.day = day
		g.seq = 0
	}
	g.seq++

	baseID = fmt.Sprintf("BRK-%s-%05d", day, g.seq)
	return fmt.Sprintf("%s-%s", baseID, LegEntry), baseID
}

// Related returns the client order ID for another leg of an existing chain.
// For scaled exits pass leg values like "TP1", "TP2".
func Related(baseID, leg string) (string, error) {
	if baseID == "" {
		return "", ErrEmptyBaseID
	}
	fullID := fmt.Sprintf("%s-%s", baseID, leg)
	if len(fullID) > MaxClientOrderIDLength {
		return "", fmt.Errorf("%w: %q is %d characters", ErrClientOrderIDLong, fullID, len(fullID))
	}
	return fullID, nil
}

// ExtractBaseID strips the leg suffix from a full chain order ID.
// "BRK-15JAN-00001-TP2" -> "BRK-15JAN-00001".
func ExtractBaseID(fullID string) string {
	parts := strings.Split(fullID, "-")
	if len(parts) >= 4 {
		return strings.Join(parts[:3], "-")
	}
	return fullID
}
