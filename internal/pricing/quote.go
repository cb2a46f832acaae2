// Package pricing derives entry, stop-loss and take-profit prices from
// market data snapshots. All derivations are pure value calculations;
// missing data degrades to percentage-based estimates instead of failing.
package pricing

import (
	"math"
	"time"
)

// Quote is a point-in-time snapshot of a symbol's market. Any field may be
// zero (or NaN) when the feed has no data for it.
type Quote struct {
	Last  float64 `json:"last"`
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
	Close float64 `json:"close"`
}

// Bar is one OHLCV bar. Series are ordered oldest to newest; the last bar
// of an intraday series may still be forming.
type Bar struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// validPrice reports whether p is usable: present, not NaN and strictly
// positive.
func validPrice(p float64) bool {
	return !math.IsNaN(p) && p > 0
}

// Mid returns the bid/ask midpoint, or 0 when either side is missing.
func (q Quote) Mid() float64 {
	if validPrice(q.Bid) && validPrice(q.Ask) {
		return (q.Bid + q.Ask) / 2
	}
	return 0
}

// Ref returns the best available reference price: last, then midpoint,
// then previous close.
func (q Quote) Ref() float64 {
	if validPrice(q.Last) {
		return q.Last
	}
	if mid := q.Mid(); validPrice(mid) {
		return mid
	}
	if validPrice(q.Close) {
		return q.Close
	}
	return 0
}
