package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/auth"
	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/database"
	"github.com/calder-fi/optio-api/internal/exchange"
	"github.com/calder-fi/optio-api/internal/gasless"
	"github.com/calder-fi/optio-api/internal/ledger"
	"github.com/calder-fi/optio-api/internal/oracle"
	"github.com/calder-fi/optio-api/internal/orderbook"
	"github.com/calder-fi/optio-api/internal/settlement"
	"github.com/calder-fi/optio-api/internal/types"
	"github.com/calder-fi/optio-api/pkg/middleware"
)

const (
	minOffers     = 10
	maxOffers     = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	wethAddress = "0x4200000000000000000000000000000000000006"
	usdcAddress = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

	// Matches the server's default API credentials
	apiKey    = "optio-dev-key"
	apiSecret = "optio-dev-secret"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simDB is shared between the in-process server and the driver so the
// driver can manipulate option clocks directly.
var simDB *gorm.DB

// simChain is an in-memory stand-in for the protocol contract. Offer hashes
// are deterministic over the offer's economic fields, token ids are
// sequential, and every submitted take confirms immediately.
type simChain struct {
	mu        sync.Mutex
	nextToken int64
}

func (c *simChain) OfferHash(_ context.Context, offer types.Offer) (common.Hash, error) {
	payload := fmt.Sprintf("%s|%s|%s|%s|%v|%d|%d|%d",
		offer.Writer, offer.Underlying, offer.CollateralAmount,
		offer.PremiumPerDay, offer.IsCall, offer.MinDuration, offer.MaxDuration, offer.Deadline)
	return crypto.Keccak256Hash([]byte(payload)), nil
}

func (c *simChain) EstimateTakeGas(_ context.Context, _ chain.TakeRequest) (uint64, error) {
	return 320_000, nil
}

func (c *simChain) SubmitTake(_ context.Context, req chain.TakeRequest, _ uint64) (*chain.TakeResult, error) {
	c.mu.Lock()
	c.nextToken++
	tokenID := c.nextToken
	c.mu.Unlock()

	txHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("take|%d|%s", tokenID, req.Taker)))
	return &chain.TakeResult{TxHash: txHash, TokenID: big.NewInt(tokenID)}, nil
}

func (c *simChain) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil // 1 gwei
}

func (c *simChain) RelayerBalance(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000_000), nil // comfortably funded
}

func (c *simChain) TokenConfig(_ context.Context, token common.Address) (*types.TokenConfig, error) {
	return &types.TokenConfig{
		Token:           token.Hex(),
		ConfigHash:      crypto.Keccak256Hash([]byte("sim-config")).Hex(),
		Stablecoin:      usdcAddress,
		MinUnit:         "100000000000000000",
		SwapVenue:       "0x9008D19f58AAbD9eD0D60971565AA8510560ab41",
		PoolFee:         500,
		PythPriceFeedID: crypto.Keccak256Hash([]byte("eth-usd")).Hex(),
	}, nil
}

func (c *simChain) TransactionReceipt(_ context.Context, _ common.Hash) (*chain.Receipt, error) {
	return &chain.Receipt{GasUsed: 290_000, EffectiveGasPrice: big.NewInt(1_000_000_000)}, nil
}

func (c *simChain) ActiveOption(_ context.Context, tokenID *big.Int) (*types.ActiveOption, error) {
	return nil, fmt.Errorf("%w: token %s not minted", types.ErrPositionNotFound, tokenID.String())
}

// simVenue accepts every order and reports it fulfilled on the second poll.
type simVenue struct {
	mu    sync.Mutex
	polls map[string]int
}

func newSimVenue() *simVenue {
	return &simVenue{polls: make(map[string]int)}
}

func (v *simVenue) SubmitOrder(_ context.Context, _ exchange.Order, _ hexutil.Bytes, _ common.Address) (string, error) {
	return "0x" + strings.ReplaceAll(uuid.New().String(), "-", ""), nil
}

func (v *simVenue) GetOrderStatus(_ context.Context, uid string) (*exchange.OrderStatus, error) {
	v.mu.Lock()
	v.polls[uid]++
	n := v.polls[uid]
	v.mu.Unlock()

	status := exchange.StatusOpen
	if n >= 2 {
		status = exchange.StatusFulfilled
	}
	return &exchange.OrderStatus{UID: uid, Status: status}, nil
}

// simulationClient handles HTTP communication with the options API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"offer":     {name: "Create Offer"},
			"orderbook": {name: "Query Orderbook"},
			"take":      {name: "Gasless Take"},
			"initiate":  {name: "Initiate Settlement"},
			"approve":   {name: "Approve Settlement"},
			"submit":    {name: "Submit Settlement"},
			"status":    {name: "Settlement Status"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// do sends an authenticated JSON request and decodes the envelope's data
// field into out (when out is non-nil).
func (sc *simulationClient) do(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	stats := sc.stats[statKey]
	defer func() {
		stats.addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		stats.failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		stats.failures++
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		stats.failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

// randomOffer builds a signed call or put offer from a synthetic writer.
func randomOffer(workerID, seq int) types.Offer {
	writer := common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("writer|%d|%d", workerID, seq)))[:20])
	premium := rand.Intn(4_000_000) + 500_000 // 0.5 to 4.5 USDC per day per unit

	return types.Offer{
		Writer:           writer.Hex(),
		Underlying:       wethAddress,
		CollateralAmount: "1000000000000000000", // 1 WETH
		Stablecoin:       usdcAddress,
		IsCall:           rand.Intn(2) == 0,
		PremiumPerDay:    fmt.Sprintf("%d", premium),
		MinDuration:      1,
		MaxDuration:      30,
		MinFillAmount:    "100000000000000000", // 0.1 WETH
		Deadline:         time.Now().Add(24 * time.Hour).Unix(),
		ConfigHash:       crypto.Keccak256Hash([]byte("sim-config")).Hex(),
		Signature:        "0x" + strings.Repeat("ab", 65),
	}
}

// openAuthorization returns an EIP-3009 authorization generous enough to
// cover any premium or gas quote the simulation produces.
func openAuthorization(taker string) types.Authorization {
	now := time.Now()
	return types.Authorization{
		From:        taker,
		To:          common.BytesToAddress(crypto.Keccak256([]byte("protocol"))[:20]).Hex(),
		Value:       "1000000000000", // 1M USDC
		ValidAfter:  0,
		ValidBefore: now.Add(time.Hour).Unix(),
		Nonce:       crypto.Keccak256Hash([]byte(uuid.New().String())).Hex(),
		V:           27,
		R:           crypto.Keccak256Hash([]byte("r")).Hex(),
		S:           crypto.Keccak256Hash([]byte("s")).Hex(),
	}
}

// main runs the options flow simulation
// It starts a local API server and simulates writers posting offers, takers
// filling them gaslessly, and the settlement protocol running to completion
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOffers := rand.Intn(maxOffers-minOffers) + minOffers
	log.Info().Int("target_offers", targetOffers).Msg("Starting simulation")

	offersChan := make(chan types.Offer, targetOffers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOffersHTTP(workerID, targetOffers/numWorkers, simClient, offersChan)
		}(i)
	}

	wg.Wait()
	close(offersChan)

	var offers []types.Offer
	for offer := range offersChan {
		offers = append(offers, offer)
	}

	log.Info().Int("offers_created", len(offers)).Msg("All offers created")

	stats := struct {
		TotalOffers          int
		Takes                int
		FailedTakes          int
		InitiatedSettlements int
		CompletedSettlements int
		FailedSettlements    int
		StartTime            time.Time
		Calls                int
		Puts                 int
	}{
		StartTime:   time.Now(),
		TotalOffers: len(offers),
	}

	// Query the orderbook once per side before taking
	for _, isCall := range []bool{true, false} {
		var book struct {
			Entries []json.RawMessage `json:"orderbook"`
		}
		path := fmt.Sprintf("/api/v1/orderbook/%s?is_call=%v", wethAddress, isCall)
		if err := simClient.do("orderbook", "GET", path, nil, &book); err != nil {
			log.Error().Err(err).Msg("Failed to query orderbook")
		} else {
			log.Info().Bool("is_call", isCall).Int("entries", len(book.Entries)).Msg("Orderbook queried")
		}
	}

	// Take each offer gaslessly, then settle the minted position
	var tokenIDs []string
	for i, offer := range offers {
		if offer.IsCall {
			stats.Calls++
		} else {
			stats.Puts++
		}

		taker := common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("taker|%d", i)))[:20]).Hex()
		duration := int64(rand.Intn(30) + 1)

		var take struct {
			TxHash  string `json:"tx_hash"`
			TokenID string `json:"token_id"`
		}
		err := simClient.do("take", "POST", "/api/v1/gasless/take", map[string]interface{}{
			"offer":           offer,
			"offer_signature": offer.Signature,
			"taker":           taker,
			"fill_amount":     "500000000000000000", // 0.5 WETH
			"duration":        duration,
			"premium_auth":    openAuthorization(taker),
			"gas_auth":        openAuthorization(taker),
		}, &take)
		if err != nil {
			log.Error().Err(err).Str("offer_hash", offer.OfferHash).Msg("Failed to take offer")
			stats.FailedTakes++
			continue
		}
		stats.Takes++
		tokenIDs = append(tokenIDs, take.TokenID)

		log.Info().
			Str("token_id", take.TokenID).
			Str("tx_hash", take.TxHash).
			Int64("duration", duration).
			Msg("Offer taken")
	}

	// Options settle only after expiry; jump the minted positions' clocks
	// instead of waiting the durations out.
	expired := time.Now().Add(-time.Minute).Unix()
	for _, tokenID := range tokenIDs {
		if err := simDB.Model(&types.ActiveOption{}).
			Where("token_id = ?", tokenID).
			Update("expiry_time", expired).Error; err != nil {
			log.Error().Err(err).Str("token_id", tokenID).Msg("Failed to fast-forward expiry")
		}
	}

	// Drive each position through the settlement protocol
	for _, tokenID := range tokenIDs {
		var initiated struct {
			ConditionsHash string `json:"settlement_conditions_hash"`
		}
		err := simClient.do("initiate", "POST", "/api/v1/settlement/initiate", map[string]string{
			"token_id":       tokenID,
			"min_buy_amount": "1000000000", // 1000 USDC floor
		}, &initiated)
		if err != nil {
			log.Error().Err(err).Str("token_id", tokenID).Msg("Failed to initiate settlement")
			stats.FailedSettlements++
			continue
		}
		stats.InitiatedSettlements++

		err = simClient.do("approve", "POST", "/api/v1/settlement/approve", map[string]string{
			"token_id":                   tokenID,
			"settlement_conditions_hash": initiated.ConditionsHash,
			"taker_signature":            "0x" + strings.Repeat("cd", 65),
		}, nil)
		if err != nil {
			log.Error().Err(err).Str("token_id", tokenID).Msg("Failed to approve settlement")
			stats.FailedSettlements++
			continue
		}

		err = simClient.do("submit", "POST", "/api/v1/settlement/submit", map[string]string{
			"token_id": tokenID,
		}, nil)
		if err != nil {
			log.Error().Err(err).Str("token_id", tokenID).Msg("Failed to submit settlement")
			stats.FailedSettlements++
			continue
		}
	}

	// Give the background processor time to poll the venue to completion
	time.Sleep(3 * time.Second)

	for _, tokenID := range tokenIDs {
		var view struct {
			Settlement struct {
				Status string `json:"status"`
			} `json:"settlement"`
		}
		if err := simClient.do("status", "GET", "/api/v1/settlement/"+tokenID, nil, &view); err != nil {
			log.Error().Err(err).Str("token_id", tokenID).Msg("Failed to fetch settlement status")
			continue
		}
		if view.Settlement.Status == settlement.StatusCompleted {
			stats.CompletedSettlements++
		}
		log.Info().Str("token_id", tokenID).Str("status", view.Settlement.Status).Msg("Settlement status")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("OPTIONS FLOW SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Offer Statistics
----------------
Total Offers:          %d
Calls / Puts:          %d / %d
Takes:                 %d
Failed Takes:          %d
Initiated Settlements: %d
Completed Settlements: %d
Failed Settlements:    %d
Duration:              %v
`, stats.TotalOffers, stats.Calls, stats.Puts, stats.Takes, stats.FailedTakes,
		stats.InitiatedSettlements, stats.CompletedSettlements, stats.FailedSettlements,
		duration.Round(time.Millisecond))

	fmt.Println("\n" + strings.Repeat("=", 80))

	successRate := 0.0
	if stats.Takes > 0 {
		successRate = float64(stats.CompletedSettlements) / float64(stats.Takes) * 100
	}
	log.Info().
		Float64("success_rate", successRate).
		Int("total_offers", stats.TotalOffers).
		Int("completed_settlements", stats.CompletedSettlements).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// createOffersHTTP generates and submits random offers to the API
// Runs as a worker goroutine, sending created offers (with their hashes)
// to offersChan
func createOffersHTTP(workerID, numOffers int, simClient *simulationClient, offersChan chan<- types.Offer) {
	for i := 0; i < numOffers; i++ {
		offer := randomOffer(workerID, i)

		var created struct {
			OfferHash string `json:"offer_hash"`
		}
		if err := simClient.do("offer", "POST", "/api/v1/offers", offer, &created); err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Msg("Failed to create offer")
			continue
		}

		offer.OfferHash = created.OfferHash
		offersChan <- offer
		log.Info().
			Int("worker_id", workerID).
			Str("offer_hash", created.OfferHash).
			Bool("is_call", offer.IsCall).
			Str("premium_per_day", offer.PremiumPerDay).
			Msg("Offer created")

		// Random sleep between offers
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the options API server with the
// in-memory chain and venue stand-ins
func startServer() error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	simDB = db

	chainClient := &simChain{}
	venue := newSimVenue()
	priceSource := oracle.Static{Value: big.NewInt(250_000_000_000)} // $2500
	weth := common.HexToAddress(wethAddress)

	authService := auth.NewService("optio-secret-key")
	authService.RegisterAPICredentials(apiKey, apiSecret)

	ledgerService := ledger.NewService(db, chainClient)
	orderbookService := orderbook.NewService(db)
	estimator := gasless.NewEstimator(chainClient, priceSource, weth)
	relayer := gasless.NewRelayer(ledgerService.GetDB(), chainClient, estimator, priceSource, weth,
		big.NewInt(100_000_000_000_000_000))
	settlementService := settlement.NewService(db, ledgerService.GetDB(), venue, priceSource, settlement.Config{
		ChainID:            8453,
		SettlementContract: common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		ProtocolAddress:    common.BytesToAddress(crypto.Keccak256([]byte("protocol"))[:20]),
		Stablecoin:         common.HexToAddress(usdcAddress),
	})

	processor := settlement.NewProcessor(settlementService.GetDB(), ledgerService.GetDB(), venue, 500*time.Millisecond)
	go processor.Start(context.Background())

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	orderbookHandlers := orderbook.NewGinHandlers(orderbookService)
	gaslessHandlers := gasless.NewGinHandlers(relayer, estimator)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	setupRoutes(router, authHandlers, ledgerHandlers, orderbookHandlers, gaslessHandlers, settlementHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
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
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		offers := v1.Group("/offers")
		offers.Use(middleware.JWTAuth())
		{
			offers.POST("", ledgerHandlers.CreateOfferHandler())
			offers.GET("", ledgerHandlers.ListOffersHandler())
			offers.GET("/:offer_hash", ledgerHandlers.GetOfferHandler())
			offers.DELETE("/:offer_hash", ledgerHandlers.CancelOfferHandler())
		}

		ob := v1.Group("/orderbook")
		ob.Use(middleware.JWTAuth())
		{
			ob.GET("/:token", orderbookHandlers.QueryHandler())
		}

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

		gaslessGroup := v1.Group("/gasless")
		gaslessGroup.Use(middleware.JWTAuth())
		{
			gaslessGroup.POST("/take", gaslessHandlers.TakeHandler())
			gaslessGroup.GET("/estimate", gaslessHandlers.EstimateHandler())
		}

		settlementGroup := v1.Group("/settlement")
		settlementGroup.Use(middleware.JWTAuth())
		{
			settlementGroup.POST("/initiate", settlementHandlers.InitiateHandler())
			settlementGroup.POST("/approve", settlementHandlers.ApproveHandler())
			settlementGroup.POST("/submit", settlementHandlers.SubmitHandler())
			settlementGroup.GET("/:token_id", settlementHandlers.StatusHandler())
			settlementGroup.GET("/order/:order_uid", settlementHandlers.OrderStatusHandler())
		}
	}
}
