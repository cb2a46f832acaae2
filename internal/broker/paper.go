package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ib-trading-desk/internal/order"
)

// PaperSubmitter accepts every valid order request without touching the
// gateway. Used in dry-run mode and in tests; broker order IDs are random
// UUIDs so downstream bookkeeping behaves exactly as with live orders.
type PaperSubmitter struct {
	chains *order.ChainIDGenerator
	logger zerolog.Logger
}

// NewPaperSubmitter creates a paper submitter.
func NewPaperSubmitter(logger zerolog.Logger) *PaperSubmitter {
	return &PaperSubmitter{
		chains: order.NewChainIDGenerator(nil),
		logger: logger.With().Str("component", "PaperSubmitter").Logger(),
	}
}

// Submit simulates placing the bracket: one entry leg, one stop leg, and
// either a single take-profit leg or one leg per scaled target.
func (s *PaperSubmitter) Submit(ctx context.Context, req *order.Request) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entryID, baseID := s.chains.Generate()
	now := time.Now()

	bracket := &Bracket{
		BaseID: baseID,
		Entry: PlacedOrder{
			OrderID:       uuid.New().String(),
			ClientOrderID: entryID,
			Symbol:        req.Symbol,
			Leg:           order.LegEntry,
			Quantity:      req.Quantity,
			Price:         req.EntryPrice,
			SubmittedAt:   now,
		},
	}

	stopID, err := order.Related(baseID, order.LegStopLoss)
	if err != nil {
		return nil, fmt.Errorf("stop leg ID: %w", err)
	}
	bracket.Stop = PlacedOrder{
		OrderID:       uuid.New().String(),
		ClientOrderID: stopID,
		Symbol:        req.Symbol,
		Leg:           order.LegStopLoss,
		Quantity:      req.Quantity,
		Price:         req.StopLoss,
		SubmittedAt:   now,
	}

	if req.HasTargets() {
		for i, target := range req.Targets {
			leg := fmt.Sprintf("%s%d", order.LegTakeProfit, i+1)
			exitID, err := order.Related(baseID, leg)
			if err != nil {
				return nil, fmt.Errorf("exit leg ID: %w", err)
			}
			bracket.Exits = append(bracket.Exits, PlacedOrder{
				OrderID:       uuid.New().String(),
				ClientOrderID: exitID,
				Symbol:        req.Symbol,
				Leg:           leg,
				Quantity:      target.Quantity,
				Price:         target.Price,
				SubmittedAt:   now,
			})
		}
	} else if req.TakeProfit > 0 {
		exitID, err := order.Related(baseID, order.LegTakeProfit)
		if err != nil {
			return nil, fmt.Errorf("exit leg ID: %w", err)
		}
		bracket.Exits = append(bracket.Exits, PlacedOrder{
			OrderID:       uuid.New().String(),
			ClientOrderID: exitID,
			Symbol:        req.Symbol,
			Leg:           order.LegTakeProfit,
			Quantity:      req.Quantity,
			Price:         req.TakeProfit,
			SubmittedAt:   now,
		})
	}

	s.logger.Info().
		Str("symbol", req.Symbol).
		Str("direction", string(req.Direction)).
		Str("base_id", baseID).
		Int("quantity", req.Quantity).
		Int("exit_legs", len(bracket.Exits)).
		Msg("Paper bracket submitted")

	return bracket, nil
}
