package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ib-trading-desk/internal/auth"
	"ib-trading-desk/internal/order"
	"ib-trading-desk/internal/position"
	"ib-trading-desk/internal/pricing"
)

// handleLogin authenticates the operator and returns a token pair.
func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid login request")
		return
	}

	pair, err := s.deps.AuthService.Login(req)
	if err != nil {
		if authErr, ok := err.(auth.AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
			return
		}
		errorResponse(c, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, pair)
}

// handleRefresh exchanges a refresh token for a new token pair.
func (s *Server) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid refresh request")
		return
	}

	pair, err := s.deps.AuthService.Refresh(req)
	if err != nil {
		if authErr, ok := err.(auth.AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
			return
		}
		errorResponse(c, http.StatusInternalServerError, "refresh failed")
		return
	}

	c.JSON(http.StatusOK, pair)
}

// handleLogout revokes the supplied refresh token.
func (s *Server) handleLogout(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid logout request")
		return
	}

	s.deps.AuthService.Logout(req.RefreshToken)
	successResponse(c, gin.H{"logged_out": true})
}

// handlePreviewOrder validates an order form without submitting anything.
// The response always carries the accumulated validation errors so the UI
// can render every problem at once.
func (s *Server) handlePreviewOrder(c *gin.Context) {
	var params order.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid order payload")
		return
	}

	req, errs := order.NewBuilder().BuildFromParams(params)
	c.JSON(http.StatusOK, gin.H{
		"valid":  req != nil,
		"order":  req,
		"errors": errs,
	})
}

// handleSuggestOrder derives entry, stop and target prices for a symbol.
func (s *Server) handleSuggestOrder(c *gin.Context) {
	if s.deps.MarketData == nil {
		errorResponse(c, http.StatusServiceUnavailable, "market data unavailable")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	direction := order.Direction(strings.ToUpper(c.DefaultQuery("direction", string(order.DirectionBuy))))
	if !direction.Valid() {
		errorResponse(c, http.StatusBadRequest, "direction must be BUY or SELL")
		return
	}

	ctx := c.Request.Context()
	quote, err := s.deps.MarketData.Quote(ctx, symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to fetch quote: "+err.Error())
		return
	}

	// Bar history is best effort; the deriver degrades to percentage stops.
	fiveMin, err := s.deps.MarketData.FiveMinuteBars(ctx, symbol)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("No 5-minute bars")
	}
	daily, err := s.deps.MarketData.DailyBars(ctx, symbol)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("No daily bars")
	}

	suggestion, ok := s.deps.Deriver.Suggest(direction, quote, fiveMin, daily)
	if !ok {
		errorResponse(c, http.StatusBadGateway, "quote has no usable price")
		return
	}

	shares := 0
	if s.deps.RiskManager != nil {
		shares = s.deps.RiskManager.SharesFor(suggestion.EntryPrice, suggestion.StopLoss, 0)
	}

	successResponse(c, gin.H{
		"symbol":     symbol,
		"suggestion": suggestion,
		"shares":     shares,
	})
}

// handlePlaceOrder runs the full desk flow: fill missing prices from market
// data, size the position from account risk, validate, submit the bracket
// and start tracking the position.
func (s *Server) handlePlaceOrder(c *gin.Context) {
	var params order.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid order payload")
		return
	}

	ctx := c.Request.Context()

	// Fill absent prices from the deriver when market data is wired.
	if s.deps.MarketData != nil && params.Symbol != "" && params.Direction.Valid() &&
		(params.EntryPrice == 0 || params.StopLoss == 0) {
		quote, err := s.deps.MarketData.Quote(ctx, params.Symbol)
		if err == nil {
			var fiveMin, daily []pricing.Bar
			fiveMin, _ = s.deps.MarketData.FiveMinuteBars(ctx, params.Symbol)
			daily, _ = s.deps.MarketData.DailyBars(ctx, params.Symbol)

			if suggestion, ok := s.deps.Deriver.Suggest(params.Direction, quote, fiveMin, daily); ok {
				if params.EntryPrice == 0 {
					params.EntryPrice = suggestion.EntryPrice
				}
				if params.StopLoss == 0 {
					params.StopLoss = suggestion.StopLoss
				}
				if params.TakeProfit == 0 && !params.UseMultipleTargets {
					params.TakeProfit = suggestion.TakeProfit
				}
			}
		} else {
			s.logger.Warn().Err(err).Str("symbol", params.Symbol).Msg("Quote unavailable, order must carry explicit prices")
		}
	}

	// Size from account risk when the form left quantity blank.
	if params.Quantity == 0 && s.deps.RiskManager != nil {
		params.Quantity = s.deps.RiskManager.SharesFor(params.EntryPrice, params.StopLoss, params.RiskPercent)
		if params.Quantity == 0 {
			errorResponse(c, http.StatusUnprocessableEntity, "risk sizing produced zero shares")
			return
		}
	}

	if s.deps.RiskManager != nil {
		if allowed, reason := s.deps.RiskManager.CanOpenPosition(); !allowed {
			errorResponse(c, http.StatusConflict, "risk limit: "+reason)
			return
		}
	}

	req, errs := order.NewBuilder().BuildFromParams(params)
	if req == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  true,
			"errors": errs,
		})
		return
	}

	bracket, err := s.deps.Submitter.Submit(ctx, req)
	if err != nil {
		if s.deps.EventBus != nil {
			s.deps.EventBus.PublishError("orders", "order submission failed", err)
		}
		errorResponse(c, http.StatusBadGateway, "order submission failed: "+err.Error())
		return
	}

	pos := s.deps.Tracker.Open(req.Symbol, req.Quantity, req.EntryPrice, req.Direction,
		req.StopLoss, req.TakeProfit, bracket.OrderIDs()...)

	if s.deps.RiskManager != nil {
		s.deps.RiskManager.RegisterOpen()
	}
	if s.deps.PositionStore != nil && pos != nil {
		if err := s.deps.PositionStore.Save(ctx, pos); err != nil {
			s.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to persist position state")
		}
	}
	if s.deps.EventBus != nil {
		s.deps.EventBus.PublishOrderPlaced(bracket.BaseID, req.Symbol, string(req.Direction),
			req.Quantity, req.EntryPrice, req.StopLoss)
		if pos != nil {
			s.deps.EventBus.PublishPositionOpened(pos.Symbol, string(pos.Direction),
				pos.Quantity, pos.EntryPrice, pos.StopLoss)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"order":    req,
		"bracket":  bracket,
		"position": pos,
	})
}

// handleGetPositions returns all open positions.
func (s *Server) handleGetPositions(c *gin.Context) {
	successResponse(c, gin.H{
		"positions":      s.deps.Tracker.OpenPositions(),
		"unrealized_pnl": s.deps.Tracker.TotalUnrealizedPnL(),
		"realized_pnl":   s.deps.Tracker.TotalRealizedPnL(),
	})
}

// handleGetPositionHistory returns closed positions.
func (s *Server) handleGetPositionHistory(c *gin.Context) {
	successResponse(c, gin.H{
		"positions": s.deps.Tracker.ClosedPositions(),
	})
}

// handleGetPosition returns one open position.
func (s *Server) handleGetPosition(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	pos := s.deps.Tracker.Get(symbol)
	if pos == nil {
		errorResponse(c, http.StatusNotFound, "no open position for "+symbol)
		return
	}
	successResponse(c, pos)
}

type closePositionRequest struct {
	Quantity int     `json:"quantity"` // 0 closes the full position
	Price    float64 `json:"price"`    // 0 uses the current market price
}

// handleClosePosition closes a position, fully or partially.
func (s *Server) handleClosePosition(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	var req closePositionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid close request")
			return
		}
	}

	existing := s.deps.Tracker.Get(symbol)
	if existing == nil {
		errorResponse(c, http.StatusNotFound, "no open position for "+symbol)
		return
	}

	ctx := c.Request.Context()
	exitPrice := req.Price
	if exitPrice == 0 {
		if s.deps.MarketData == nil {
			errorResponse(c, http.StatusBadRequest, "price is required when market data is unavailable")
			return
		}
		quote, err := s.deps.MarketData.Quote(ctx, symbol)
		if err != nil {
			errorResponse(c, http.StatusBadGateway, "failed to fetch exit price: "+err.Error())
			return
		}
		exitPrice = quote.Ref()
		if exitPrice <= 0 {
			errorResponse(c, http.StatusBadGateway, "quote has no usable exit price")
			return
		}
	}

	var pos *position.Position
	if req.Quantity > 0 && req.Quantity < existing.Quantity {
		pos = s.deps.Tracker.ClosePartial(symbol, req.Quantity, exitPrice)
	} else {
		pos = s.deps.Tracker.Close(symbol, exitPrice)
	}
	if pos == nil {
		errorResponse(c, http.StatusNotFound, "no open position for "+symbol)
		return
	}

	fullyClosed := !pos.ClosedAt.IsZero()
	if fullyClosed {
		if s.deps.RiskManager != nil {
			s.deps.RiskManager.RegisterClose(pos.RealizedPnL)
		}
		if s.deps.PositionStore != nil {
			if err := s.deps.PositionStore.Delete(ctx, symbol); err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to clear position state")
			}
		}
		if s.deps.TradeRepo != nil {
			if _, err := s.deps.TradeRepo.RecordClosedPosition(ctx, pos); err != nil {
				s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to journal closed trade")
			}
		}
		if s.deps.EventBus != nil {
			s.deps.EventBus.PublishPositionClosed(symbol, exitPrice, pos.RealizedPnL, pos.RMultiple)
		}
	} else {
		if s.deps.PositionStore != nil {
			if err := s.deps.PositionStore.Save(ctx, pos); err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist position state")
			}
		}
		if s.deps.EventBus != nil {
			s.deps.EventBus.PublishPositionUpdate(symbol, exitPrice, pos.UnrealizedPnL, pos.RMultiple)
		}
	}

	successResponse(c, gin.H{
		"position":     pos,
		"fully_closed": fullyClosed,
		"exit_price":   exitPrice,
	})
}

type updatePriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}

// handleUpdatePositionPrice marks an open position at a new price.
func (s *Server) handleUpdatePositionPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "price must be a positive number")
		return
	}

	pos := s.deps.Tracker.UpdatePrice(symbol, req.Price)
	if pos == nil {
		errorResponse(c, http.StatusNotFound, "no open position for "+symbol)
		return
	}

	if s.deps.EventBus != nil {
		s.deps.EventBus.PublishPositionUpdate(symbol, req.Price, pos.UnrealizedPnL, pos.RMultiple)
	}
	successResponse(c, pos)
}

// handleRiskStatus returns the risk manager's live metrics.
func (s *Server) handleRiskStatus(c *gin.Context) {
	if s.deps.RiskManager == nil {
		errorResponse(c, http.StatusServiceUnavailable, "risk manager unavailable")
		return
	}
	successResponse(c, s.deps.RiskManager.Metrics())
}

// handleAccountSummary returns the broker account snapshot. Without market
// data it degrades to the risk manager's last known account value.
func (s *Server) handleAccountSummary(c *gin.Context) {
	if s.deps.MarketData == nil {
		if s.deps.RiskManager != nil {
			successResponse(c, gin.H{
				"net_liquidation": s.deps.RiskManager.AccountValue(),
				"stale":           true,
			})
			return
		}
		errorResponse(c, http.StatusServiceUnavailable, "market data unavailable")
		return
	}

	summary, err := s.deps.MarketData.AccountSummary(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to fetch account summary: "+err.Error())
		return
	}
	successResponse(c, summary)
}

// handleGetTrades returns the journal of closed trades.
func (s *Server) handleGetTrades(c *gin.Context) {
	if s.deps.TradeRepo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trade journal unavailable")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	trades, err := s.deps.TradeRepo.ListTrades(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to list trades")
		return
	}
	successResponse(c, gin.H{"trades": trades})
}

// handleGetQuote returns the current quote for a symbol.
func (s *Server) handleGetQuote(c *gin.Context) {
	if s.deps.MarketData == nil {
		errorResponse(c, http.StatusServiceUnavailable, "market data unavailable")
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	quote, err := s.deps.MarketData.Quote(c.Request.Context(), symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to fetch quote: "+err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "quote": quote})
}
