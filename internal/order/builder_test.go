package order

import (
	"strings"
	"testing"
)

func validBuyBuilder() *Builder {
	return NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(DirectionBuy).
		OrderType(TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		TakeProfit(52.00)
}

func TestBuildValidBuyOrder(t *testing.T) {
	req, errs := validBuyBuilder().Build()

	if len(errs) != 0 {
		t.Fatalf("Build failed: %v", errs)
	}
	if req == nil {
		t.Fatal("expected a request, got nil")
	}
	if req.Symbol != "AAPL" {
		t.Errorf("Expected symbol AAPL, got %s", req.Symbol)
	}
	if req.Quantity != 100 {
		t.Errorf("Expected quantity 100, got %d", req.Quantity)
	}
	if req.StopLoss >= req.EntryPrice {
		t.Errorf("BUY stop %.2f should be below entry %.2f", req.StopLoss, req.EntryPrice)
	}
	if req.TakeProfit <= req.EntryPrice {
		t.Errorf("BUY take profit %.2f should be above entry %.2f", req.TakeProfit, req.EntryPrice)
	}
}

func TestBuildValidSellOrder(t *testing.T) {
	req, errs := NewBuilder().
		Symbol("tsla ").
		Quantity(50).
		Direction(DirectionSell).
		OrderType(TypeLimit).
		EntryPrice(200.00).
		StopLoss(202.00).
		TakeProfit(196.00).
		Build()

	if len(errs) != 0 {
		t.Fatalf("Build failed: %v", errs)
	}
	if req.Symbol != "TSLA" {
		t.Errorf("Expected normalized symbol TSLA, got %q", req.Symbol)
	}
	if req.StopLoss <= req.EntryPrice {
		t.Errorf("SELL stop %.2f should be above entry %.2f", req.StopLoss, req.EntryPrice)
	}
	if req.TakeProfit >= req.EntryPrice {
		t.Errorf("SELL take profit %.2f should be below entry %.2f", req.TakeProfit, req.EntryPrice)
	}
}

func TestBuildRequiredFields(t *testing.T) {
	req, errs := NewBuilder().Build()

	if req != nil {
		t.Fatal("expected nil request for empty builder")
	}
	for _, want := range []string{"symbol", "quantity", "direction", "entry price", "stop loss"} {
		found := false
		for _, e := range errs {
			if strings.Contains(e, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected an error mentioning %q, got %v", want, errs)
		}
	}
}

func TestBuildCollectsAllErrors(t *testing.T) {
	// Wrong-side stop AND wrong-side take profit AND missing limit price
	// must all be reported in one pass.
	_, errs := NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(DirectionBuy).
		OrderType(TypeStopLimit).
		EntryPrice(50.00).
		StopLoss(51.00).
		TakeProfit(48.00).
		Build()

	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestBuildStopEqualToEntryRejected(t *testing.T) {
	req, errs := NewBuilder().
		Symbol("MSFT").
		Quantity(10).
		Direction(DirectionSell).
		OrderType(TypeLimit).
		EntryPrice(300.00).
		StopLoss(300.00).
		Build()

	if req != nil {
		t.Fatal("expected rejection when stop equals entry")
	}
	if len(errs) == 0 || !strings.Contains(errs[0], "stop loss") {
		t.Errorf("expected descriptive stop loss error, got %v", errs)
	}
}

func TestBuildSuccessAndErrorsAreCoupled(t *testing.T) {
	cases := []struct {
		name    string
		builder *Builder
	}{
		{"valid", validBuyBuilder()},
		{"invalid", NewBuilder().Symbol("AAPL")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, errs := tc.builder.Build()
			if (req == nil) == (len(errs) == 0) {
				t.Errorf("request and errors must be mutually exclusive: req=%v errs=%v", req, errs)
			}
		})
	}
}

func TestBuildTakeProfitAndTargetsExclusive(t *testing.T) {
	_, errs := validBuyBuilder().
		AddTarget(51.00, 50).
		AddTarget(52.00, 50).
		Build()

	found := false
	for _, e := range errs {
		if strings.Contains(e, "mutually exclusive") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mutual exclusion error, got %v", errs)
	}
}

func TestBuildTargetPercentMustSumTo100(t *testing.T) {
	_, errs := NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(DirectionBuy).
		OrderType(TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		AddTarget(51.00, 40).
		AddTarget(52.00, 40).
		Build()

	if len(errs) == 0 {
		t.Fatal("expected failure when target percentages sum to 80")
	}
	if !strings.Contains(errs[0], "sum to 100") {
		t.Errorf("expected percentage sum error, got %v", errs)
	}
}

func TestBuildTargetQuantityRemainderGoesToLastTarget(t *testing.T) {
	// A 33/33/34 split of 100 shares floors to 33/33/34, but 33/33/33 splits
	// of odd quantities strand shares; the last target absorbs them.
	req, errs := NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(DirectionBuy).
		OrderType(TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		AddTarget(51.00, 33).
		AddTarget(52.00, 33).
		AddTarget(53.00, 34).
		Build()

	if len(errs) != 0 {
		t.Fatalf("Build failed: %v", errs)
	}

	total := 0
	for _, tgt := range req.Targets {
		total += tgt.Quantity
	}
	if total != req.Quantity {
		t.Errorf("target quantities sum to %d, want %d", total, req.Quantity)
	}
	if req.Targets[0].Quantity != 33 || req.Targets[1].Quantity != 33 || req.Targets[2].Quantity != 34 {
		t.Errorf("unexpected split: %d/%d/%d",
			req.Targets[0].Quantity, req.Targets[1].Quantity, req.Targets[2].Quantity)
	}
}

func TestBuildTargetOnWrongSideOfEntry(t *testing.T) {
	_, errs := NewBuilder().
		Symbol("AAPL").
		Quantity(100).
		Direction(DirectionBuy).
		OrderType(TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		AddTarget(49.50, 50).
		AddTarget(52.00, 50).
		Build()

	found := false
	for _, e := range errs {
		if strings.Contains(e, "target 1") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected target-side error, got %v", errs)
	}
}

func TestSetterClamping(t *testing.T) {
	req, errs := NewBuilder().
		Symbol("  aapl  ").
		Quantity(-5).
		Direction(DirectionBuy).
		OrderType(TypeLimit).
		EntryPrice(50.00).
		StopLoss(49.00).
		RiskPercent(15.0).
		Build()

	if len(errs) != 0 {
		t.Fatalf("Build failed: %v", errs)
	}
	if req.Quantity != 1 {
		t.Errorf("quantity should clamp to 1, got %d", req.Quantity)
	}
	if req.RiskPercent != 10.0 {
		t.Errorf("risk percent should clamp to 10.0, got %.2f", req.RiskPercent)
	}
	if req.Symbol != "AAPL" {
		t.Errorf("symbol should normalize to AAPL, got %q", req.Symbol)
	}
}

func TestRiskPercentClampsLow(t *testing.T) {
	req, errs := validBuyBuilder().RiskPercent(0.01).Build()
	if len(errs) != 0 {
		t.Fatalf("Build failed: %v", errs)
	}
	if req.RiskPercent != 0.1 {
		t.Errorf("risk percent should clamp to 0.1, got %.3f", req.RiskPercent)
	}
}

func TestResetClearsState(t *testing.T) {
	b := validBuyBuilder()
	b.Reset()

	req, errs := b.Build()
	if req != nil {
		t.Fatal("expected failure after reset")
	}
	if len(errs) == 0 {
		t.Fatal("expected accumulated state to be gone after reset")
	}
}

func TestBuildFromParams(t *testing.T) {
	b := NewBuilder()
	req, errs := b.BuildFromParams(Params{
		Symbol:      "nvda",
		Quantity:    60,
		Direction:   DirectionBuy,
		OrderType:   TypeLimit,
		EntryPrice:  120.00,
		StopLoss:    118.50,
		TakeProfit:  123.00,
		RiskPercent: 2.0,
		Account:     "DU1234567",
	})

	if len(errs) != 0 {
		t.Fatalf("BuildFromParams failed: %v", errs)
	}
	if req.Symbol != "NVDA" {
		t.Errorf("Expected NVDA, got %s", req.Symbol)
	}
	if req.Account != "DU1234567" {
		t.Errorf("Expected account DU1234567, got %s", req.Account)
	}
}

func TestBuildFromParamsExpandsTargets(t *testing.T) {
	req, errs := NewBuilder().BuildFromParams(Params{
		Symbol:             "AMD",
		Quantity:           90,
		Direction:          DirectionBuy,
		OrderType:          TypeLimit,
		EntryPrice:         100.00,
		StopLoss:           98.00,
		UseMultipleTargets: true,
		ProfitTargets: []TargetParams{
			{Price: 102.00, Percent: 50},
			{Price: 104.00, Percent: 50},
		},
	})

	if len(errs) != 0 {
		t.Fatalf("BuildFromParams failed: %v", errs)
	}
	if len(req.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(req.Targets))
	}
	if req.Targets[0].Quantity != 45 || req.Targets[1].Quantity != 45 {
		t.Errorf("unexpected target quantities: %d/%d", req.Targets[0].Quantity, req.Targets[1].Quantity)
	}
}

func TestBuildFromParamsIgnoresTargetsWhenDisabled(t *testing.T) {
	req, errs := NewBuilder().BuildFromParams(Params{
		Symbol:             "AMD",
		Quantity:           90,
		Direction:          DirectionBuy,
		OrderType:          TypeLimit,
		EntryPrice:         100.00,
		StopLoss:           98.00,
		TakeProfit:         104.00,
		UseMultipleTargets: false,
		ProfitTargets: []TargetParams{
			{Price: 102.00, Percent: 100},
		},
	})

	if len(errs) != 0 {
		t.Fatalf("BuildFromParams failed: %v", errs)
	}
	if req.HasTargets() {
		t.Error("profit targets should be ignored when UseMultipleTargets is false")
	}
}

func TestBuildFromParamsResetsPreviousState(t *testing.T) {
	b := validBuyBuilder()
	req, errs := b.BuildFromParams(Params{Symbol: "IBM"})

	if req != nil {
		t.Fatal("expected failure: params only carry a symbol")
	}
	if len(errs) == 0 {
		t.Fatal("expected missing-field errors after reset")
	}
}
