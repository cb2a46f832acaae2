package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/order"
)

func buildRequest(t *testing.T, b *order.Builder) *order.Request {
	t.Helper()
	req, errs := b.Build()
	if len(errs) != 0 {
		t.Fatalf("test request invalid: %v", errs)
	}
	return req
}

func TestPaperSubmitSingleTakeProfit(t *testing.T) {
	s := NewPaperSubmitter(zerolog.Nop())
	req := buildRequest(t, order.NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(order.DirectionBuy).
		OrderType(order.TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		TakeProfit(52.00))

	bracket, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if bracket.Entry.Quantity != 100 || bracket.Stop.Quantity != 100 {
		t.Errorf("entry/stop quantities wrong: %d/%d", bracket.Entry.Quantity, bracket.Stop.Quantity)
	}
	if len(bracket.Exits) != 1 {
		t.Fatalf("expected 1 exit leg, got %d", len(bracket.Exits))
	}
	if bracket.Exits[0].Price != 52.00 {
		t.Errorf("Expected exit at 52.00, got %.2f", bracket.Exits[0].Price)
	}

	// All legs share the chain base ID.
	for _, id := range []string{bracket.Entry.ClientOrderID, bracket.Stop.ClientOrderID, bracket.Exits[0].ClientOrderID} {
		if order.ExtractBaseID(id) != bracket.BaseID {
			t.Errorf("leg %s does not share base ID %s", id, bracket.BaseID)
		}
	}

	if len(bracket.OrderIDs()) != 3 {
		t.Errorf("expected 3 order IDs, got %d", len(bracket.OrderIDs()))
	}
}

func TestPaperSubmitScaledTargets(t *testing.T) {
	s := NewPaperSubmitter(zerolog.Nop())
	req := buildRequest(t, order.NewBuilder().
		Symbol("AAPL").
		Quantity(90).
		Direction(order.DirectionBuy).
		OrderType(order.TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		AddTarget(51.00, 50).
		AddTarget(52.00, 50))

	bracket, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(bracket.Exits) != 2 {
		t.Fatalf("expected 2 exit legs, got %d", len(bracket.Exits))
	}
	if bracket.Exits[0].Leg != "TP1" || bracket.Exits[1].Leg != "TP2" {
		t.Errorf("unexpected exit legs: %s/%s", bracket.Exits[0].Leg, bracket.Exits[1].Leg)
	}
	if bracket.Exits[0].Quantity+bracket.Exits[1].Quantity != 90 {
		t.Errorf("exit quantities should cover the position, got %d+%d",
			bracket.Exits[0].Quantity, bracket.Exits[1].Quantity)
	}
}

func TestPaperSubmitHonorsContext(t *testing.T) {
	s := NewPaperSubmitter(zerolog.Nop())
	req := buildRequest(t, order.NewBuilder().
		Symbol("AAPL").
		Quantity(10).
		Direction(order.DirectionBuy).
		OrderType(order.TypeMarket).
		EntryPrice(50.00).
		StopLoss(49.00))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Submit(ctx, req); err == nil {
		t.Error("expected error from cancelled context")
	}
}
