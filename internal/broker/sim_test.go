package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestSimulatedFeedQuoteAndBars(t *testing.T) {
	feed := NewSimulatedFeed(AccountSummary{Account: "DU1", NetLiquidation: 100000}, zerolog.Nop())
	feed.Seed("AAPL", 185.00)

	ctx := context.Background()
	quote, err := feed.Quote(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Ask <= quote.Bid {
		t.Errorf("Expected ask %.4f above bid %.4f", quote.Ask, quote.Bid)
	}

	bars, err := feed.FiveMinuteBars(ctx, "AAPL")
	if err != nil {
		t.Fatalf("FiveMinuteBars failed: %v", err)
	}
	if len(bars) == 0 {
		t.Fatal("Expected backfilled 5-minute bars")
	}
	for i, bar := range bars {
		if bar.Low > bar.High {
			t.Errorf("Bar %d has low %.4f above high %.4f", i, bar.Low, bar.High)
		}
	}

	if _, err := feed.Quote(ctx, "UNSEEDED"); err != ErrNoData {
		t.Errorf("Expected ErrNoData for unseeded symbol, got %v", err)
	}
}

func TestSimulatedFeedTick(t *testing.T) {
	feed := NewSimulatedFeed(AccountSummary{}, zerolog.Nop())
	feed.Seed("MSFT", 400.00)

	before, _ := feed.FiveMinuteBars(context.Background(), "MSFT")
	prices := feed.Tick()

	if price, ok := prices["MSFT"]; !ok || price <= 0 {
		t.Errorf("Expected positive ticked price, got %v", prices)
	}

	after, _ := feed.FiveMinuteBars(context.Background(), "MSFT")
	if len(after) != len(before)+1 {
		t.Errorf("Expected one new bar after tick, had %d now %d", len(before), len(after))
	}
}
