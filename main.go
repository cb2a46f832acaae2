package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ib-trading-desk/config"
	"ib-trading-desk/internal/api"
	"ib-trading-desk/internal/auth"
	"ib-trading-desk/internal/broker"
	"ib-trading-desk/internal/database"
	"ib-trading-desk/internal/events"
	"ib-trading-desk/internal/position"
	"ib-trading-desk/internal/pricing"
	"ib-trading-desk/internal/risk"
	"ib-trading-desk/internal/vault"
)

func main() {
	genConfig := flag.Bool("generate-config", false, "write a sample config.json and exit")
	flag.Parse()

	// Pre-config logger for failures before LoggingConfig is available.
	startup := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *genConfig {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			startup.Fatal().Err(err).Msg("Failed to write sample config")
		}
		startup.Info().Msg("Sample config written to config.json")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		startup.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("Structured logging initialized")

	// Event bus carries order and position updates to the WebSocket hub
	eventBus := events.NewEventBus()

	// Risk manager
	riskManager := risk.NewManager(risk.Config{
		MaxRiskPerTrade:   cfg.RiskConfig.MaxRiskPerTrade,
		MaxDailyDrawdown:  cfg.RiskConfig.MaxDailyDrawdown,
		MaxOpenPositions:  cfg.RiskConfig.MaxOpenPositions,
		BuyingPowerFactor: cfg.RiskConfig.BuyingPowerFactor,
	}, logger)
	logger.Info().
		Float64("max_risk_per_trade", cfg.RiskConfig.MaxRiskPerTrade).
		Int("max_open_positions", cfg.RiskConfig.MaxOpenPositions).
		Msg("Risk manager initialized")

	// Trailing stop manager
	trailingStops := risk.NewTrailingStopManager(risk.TrailingConfig{
		Enabled:           cfg.RiskConfig.UseTrailingStop,
		TrailingPercent:   cfg.RiskConfig.TrailingStopPercent,
		ActivationPercent: cfg.RiskConfig.TrailingStopActivation,
	}, logger)

	// Track newly opened positions for trailing, drop closed ones.
	if cfg.RiskConfig.UseTrailingStop {
		eventBus.Subscribe(events.EventPositionOpened, func(e events.Event) {
			symbol, _ := e.Data["symbol"].(string)
			dir, _ := e.Data["direction"].(string)
			entry, _ := e.Data["entry_price"].(float64)
			stop, _ := e.Data["stop_loss"].(float64)
			if symbol != "" {
				trailingStops.Track(symbol, position.Direction(dir), entry, stop)
			}
		})
		eventBus.Subscribe(events.EventPositionClosed, func(e events.Event) {
			if symbol, ok := e.Data["symbol"].(string); ok {
				trailingStops.Untrack(symbol)
			}
		})
	}

	ctx := context.Background()

	// Trade journal (optional)
	var tradeRepo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		tradeRepo = database.NewRepository(db)
		logger.Info().Msg("Trade journal connected")

		// Rehydrate today's realized P&L so the daily drawdown check
		// survives a restart.
		if pnl, err := tradeRepo.DailyRealizedPnL(ctx, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("Failed to load today's realized PnL from journal")
		} else if pnl != 0 {
			riskManager.SeedDailyPnL(pnl)
			logger.Info().Float64("daily_pnl", pnl).Msg("Restored daily realized PnL from journal")
		}
	}

	// Position state persistence (optional)
	var positionStore *database.PositionStateStore
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		defer redisClient.Close()
		positionStore = database.NewPositionStateStore(redisClient, logger)
	}

	// Gateway credentials from Vault
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(vault.Config{
			Enabled:    cfg.VaultConfig.Enabled,
			Address:    cfg.VaultConfig.Address,
			Token:      cfg.VaultConfig.Token,
			MountPath:  cfg.VaultConfig.MountPath,
			SecretPath: cfg.VaultConfig.SecretPath,
			TLSEnabled: cfg.VaultConfig.TLSEnabled,
			CACert:     cfg.VaultConfig.CACert,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create vault client")
		}
		if err := vaultClient.Health(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Vault health check failed")
		}
		if creds, err := vaultClient.GetCredentials(ctx, cfg.GatewayConfig.Account, cfg.GatewayConfig.Paper); err != nil {
			logger.Warn().Err(err).Str("account", cfg.GatewayConfig.Account).Msg("No gateway credentials in vault")
		} else {
			logger.Info().Str("account", creds.Account).Bool("paper", creds.IsPaper).Msg("Gateway credentials loaded from vault")
		}
	}

	// Position tracker
	tracker := position.NewTracker(logger)
	if positionStore != nil {
		restored, err := positionStore.LoadAll(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore position state")
		}
		for _, pos := range restored {
			tracker.Restore(pos)
			if cfg.RiskConfig.UseTrailingStop {
				trailingStops.Track(pos.Symbol, pos.Direction, pos.EntryPrice, pos.StopLoss)
			}
		}
		if len(restored) > 0 {
			logger.Info().Int("count", len(restored)).Msg("Restored open positions")
		}
	}

	// Market data. The gateway wire protocol lives outside this repository;
	// the desk runs against the simulated feed, seeded with the configured
	// watchlist and any restored positions.
	feed := broker.NewSimulatedFeed(broker.AccountSummary{
		Account:        cfg.GatewayConfig.Account,
		NetLiquidation: getEnvFloat("SIM_NET_LIQUIDATION", 100000),
		BuyingPower:    getEnvFloat("SIM_BUYING_POWER", 200000),
	}, logger)
	seedWatchlist(feed, logger)
	for _, pos := range tracker.OpenPositions() {
		feed.Seed(pos.Symbol, pos.EntryPrice)
	}

	if summary, err := feed.AccountSummary(ctx); err == nil {
		riskManager.UpdateAccount(summary.NetLiquidation, summary.BuyingPower)
	}

	// Price deriver
	deriver := pricing.NewDeriver(pricing.Config{
		RewardRiskRatio:    cfg.PricingConfig.RewardRiskRatio,
		FallbackPercent:    cfg.PricingConfig.FallbackPercent,
		MinStopPercent:     cfg.PricingConfig.MinStopPercent,
		ExtraBufferPercent: cfg.PricingConfig.ExtraBufferPercent,
		MinTargetPrice:     cfg.PricingConfig.MinTargetPrice,
		MaxTargetPrice:     cfg.PricingConfig.MaxTargetPrice,
	}, logger)

	// Order submission. The paper submitter assigns chain IDs locally and
	// never touches the gateway, which also covers dry-run mode.
	submitter := broker.NewPaperSubmitter(logger)
	if cfg.TradingConfig.DryRun {
		logger.Info().Msg("Dry run mode, orders are tracked but not transmitted")
	}

	// Operator authentication (optional)
	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		authService, err = auth.NewService(auth.Config{
			JWTSecret:            cfg.AuthConfig.JWTSecret,
			AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
			RefreshTokenDuration: cfg.AuthConfig.RefreshTokenDuration,
			Username:             cfg.AuthConfig.Username,
			Password:             cfg.AuthConfig.Password,
			PasswordHash:         cfg.AuthConfig.PasswordHash,
			MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
		}, cfg.GatewayConfig.Account, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize auth service")
		}
		logger.Info().Str("username", cfg.AuthConfig.Username).Msg("Operator authentication enabled")
	}

	// HTTP server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.OriginList(),
	}, api.Deps{
		AuthService:   authService,
		Deriver:       deriver,
		RiskManager:   riskManager,
		Tracker:       tracker,
		MarketData:    feed,
		Submitter:     submitter,
		TradeRepo:     tradeRepo,
		PositionStore: positionStore,
		EventBus:      eventBus,
	}, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Market loop: tick the feed, mark open positions and ratchet trailing
	// stops until shutdown.
	loopCtx, cancelLoop := context.WithCancel(ctx)
	go runMarketLoop(loopCtx, feed, tracker, trailingStops, riskManager, eventBus, logger)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancelLoop()

	// Persist open positions before exit
	if positionStore != nil {
		for _, pos := range tracker.OpenPositions() {
			if err := positionStore.Save(ctx, pos); err != nil {
				logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Failed to persist position state")
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
}

// runMarketLoop advances the simulated feed and pushes prices through the
// tracker and trailing stop manager.
func runMarketLoop(
	ctx context.Context,
	feed *broker.SimulatedFeed,
	tracker *position.Tracker,
	trailingStops *risk.TrailingStopManager,
	riskManager *risk.Manager,
	eventBus *events.EventBus,
	logger zerolog.Logger,
) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prices := feed.Tick()
			for symbol, price := range prices {
				eventBus.PublishPriceUpdate(symbol, price)

				pos := tracker.UpdatePrice(symbol, price)
				if pos == nil {
					continue
				}
				eventBus.PublishPositionUpdate(symbol, price, pos.UnrealizedPnL, pos.RMultiple)

				update := trailingStops.UpdatePrice(symbol, price)
				if update == nil {
					continue
				}
				if update.Triggered {
					closed := tracker.Close(symbol, price)
					trailingStops.Untrack(symbol)
					if closed != nil {
						riskManager.RegisterClose(closed.RealizedPnL)
						eventBus.PublishPositionClosed(symbol, price, closed.RealizedPnL, closed.RMultiple)
						logger.Info().
							Str("symbol", symbol).
							Float64("exit_price", price).
							Float64("realized_pnl", closed.RealizedPnL).
							Msg("Trailing stop triggered, position closed")
					}
					continue
				}
				if update.NewStopLoss != update.OldStopLoss {
					tracker.MoveStop(symbol, update.NewStopLoss)
					eventBus.PublishStopUpdated(symbol, update.OldStopLoss, update.NewStopLoss, false)
				}
			}

			if summary, err := feed.AccountSummary(ctx); err == nil {
				riskManager.UpdateAccount(summary.NetLiquidation, summary.BuyingPower)
				eventBus.PublishAccountUpdate(summary.Account, summary.NetLiquidation, summary.BuyingPower)
			}
		}
	}
}

// seedWatchlist seeds the simulated feed from the WATCHLIST environment
// variable, formatted as SYMBOL:PRICE pairs separated by commas.
func seedWatchlist(feed *broker.SimulatedFeed, logger zerolog.Logger) {
	raw := os.Getenv("WATCHLIST")
	if raw == "" {
		return
	}

	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			logger.Warn().Str("entry", entry).Msg("Skipping malformed watchlist entry")
			continue
		}
		price, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || price <= 0 {
			logger.Warn().Str("entry", entry).Msg("Skipping watchlist entry with bad price")
			continue
		}
		feed.Seed(strings.ToUpper(parts[0]), price)
	}
}

// newLogger builds the root zerolog logger from the logging config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			out = os.Stdout
		} else {
			out = file
		}
	}

	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = zerolog.DebugLevel
	case "WARN":
		level = zerolog.WarnLevel
	case "ERROR":
		level = zerolog.ErrorLevel
	}

	logCtx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.IncludeFile {
		logCtx = logCtx.Caller()
	}
	return logCtx.Logger()
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
