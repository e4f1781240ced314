package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/calder-fi/optio-api/internal/auth"
	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/config"
	"github.com/calder-fi/optio-api/internal/database"
	"github.com/calder-fi/optio-api/internal/exchange"
	"github.com/calder-fi/optio-api/internal/gasless"
	"github.com/calder-fi/optio-api/internal/ledger"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/orderbook"
	"github.com/calder-fi/optio-api/internal/settlement"
	"github.com/calder-fi/optio-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ethUSDFeed is the Pyth price feed id for ETH/USD.
const ethUSDFeed = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the options API server with graceful shutdown
// support. It sets up the chain client, price oracle, venue client, all
// services and handlers, and the background settlement processor.
func main() {
	cfg := config.FromEnv()
	middleware.SetJWTSecret(cfg.JWTSecret)

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize chain client. An empty relayer key yields a read-only client;
	// offer creation and orderbook queries still work without it.
	chainClient, err := chain.NewEthClient(cfg.RPCURL, cfg.ProtocolAddress, cfg.ChainID, cfg.RelayerPrivateKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize chain client")
	}

	weth := common.HexToAddress(cfg.WETH)
	priceSource := oracle.NewPythSource(cfg.PythHermesURL, map[common.Address]string{
		weth: ethUSDFeed,
	})

	venue := exchange.NewClient(cfg.CowAPIURL)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(cfg.APIKey, cfg.APISecret)

	ledgerService := ledger.NewService(db, chainClient)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	orderbookService := orderbook.NewService(db)
	orderbookHandlers := orderbook.NewGinHandlers(orderbookService)

	estimator := gasless.NewEstimator(chainClient, priceSource, weth)
	relayer := gasless.NewRelayer(ledgerService.GetDB(), chainClient, estimator, priceSource, weth,
		big.NewInt(cfg.RelayerReserveWei))
	gaslessHandlers := gasless.NewGinHandlers(relayer, estimator)

	settlementService := settlement.NewService(db, ledgerService.GetDB(), venue, priceSource, settlement.Config{
		ChainID:            cfg.ChainID,
		SettlementContract: common.HexToAddress(cfg.SettlementContract),
		ProtocolAddress:    common.HexToAddress(cfg.ProtocolAddress),
		Stablecoin:         common.HexToAddress(cfg.USDC),
	})
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start settlement processor
	settlementProcessor := settlement.NewProcessor(settlementService.GetDB(), ledgerService.GetDB(), venue, cfg.PollInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go settlementProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, ledgerHandlers, orderbookHandlers, gaslessHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Offer/orderbook/position routes: Protected by JWT authentication
// - Gasless and settlement routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	orderbookHandlers *orderbook.GinHandlers,
	gaslessHandlers *gasless.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Offer routes
		offers := v1.Group("/offers")
		offers.Use(middleware.JWTAuth())
		{
			offers.POST("", ledgerHandlers.CreateOfferHandler())
			offers.GET("", ledgerHandlers.ListOffersHandler())
			offers.GET("/:offer_hash", ledgerHandlers.GetOfferHandler())
			offers.DELETE("/:offer_hash", ledgerHandlers.CancelOfferHandler())
		}

		// Orderbook routes
		ob := v1.Group("/orderbook")
		ob.Use(middleware.JWTAuth())
		{
			ob.GET("/:token", orderbookHandlers.QueryHandler())
		}

		// Position and option routes
		positions := v1.Group("/positions")
		positions.Use(middleware.JWTAuth())
		{
			positions.GET("/:address", ledgerHandlers.PositionsHandler())
		}
		options := v1.Group("/options")
		options.Use(middleware.JWTAuth())
		{
			options.GET("/:token_id", ledgerHandlers.GetOptionHandler())
		}
		tokenConfig := v1.Group("/config")
		tokenConfig.Use(middleware.JWTAuth())
		{
			tokenConfig.GET("/:token", ledgerHandlers.GetTokenConfigHandler())
		}

		// Gasless take routes
		gaslessGroup := v1.Group("/gasless")
		gaslessGroup.Use(middleware.JWTAuth())
		{
			gaslessGroup.POST("/take", gaslessHandlers.TakeHandler())
			gaslessGroup.GET("/estimate", gaslessHandlers.EstimateHandler())
		}

		// Settlement routes
		settlementGroup := v1.Group("/settlement")
		settlementGroup.Use(middleware.JWTAuth())
		{
			settlementGroup.POST("/initiate", settlementHandlers.InitiateHandler())
			settlementGroup.POST("/approve", settlementHandlers.ApproveHandler())
			settlementGroup.POST("/submit", settlementHandlers.SubmitHandler())
			settlementGroup.GET("/:token_id", settlementHandlers.StatusHandler())
			settlementGroup.GET("/order/:order_uid", settlementHandlers.OrderStatusHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.GET("/gasless/reconcile/:tx_hash", gaslessHandlers.ReconcileHandler())
			internal.GET("/gasless/vault", gaslessHandlers.VaultStatusHandler())
			internal.POST("/settlement/reject/:token_id", settlementHandlers.RejectHandler())
		}
	}
}
