package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all environment-backed settings. Defaults target Base
// mainnet so a bare `go run ./cmd/server` comes up against real endpoints.
type Config struct {
	Port         string
	DatabasePath string
	JWTSecret    string
	APIKey       string
	APISecret    string

	RPCURL             string
	ChainID            int64
	ProtocolAddress    string
	RelayerPrivateKey  string
	RelayerReserveWei  int64
	SettlementContract string

	// Token addresses
	WETH string
	USDC string

	PythHermesURL string
	CowAPIURL     string

	PollInterval time.Duration
}

// FromEnv reads configuration from the environment, falling back to defaults.
func FromEnv() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		DatabasePath: envOr("DATABASE_PATH", "optio.db"),
		JWTSecret:    envOr("JWT_SECRET", "optio-secret-key"),
		APIKey:       envOr("API_KEY", "optio-dev-key"),
		APISecret:    envOr("API_SECRET", "optio-dev-secret"),

		RPCURL:             envOr("RPC_URL", "https://mainnet.base.org"),
		ChainID:            envInt64("CHAIN_ID", 8453),
		ProtocolAddress:    os.Getenv("PROTOCOL_ADDRESS"),
		RelayerPrivateKey:  os.Getenv("RELAYER_PRIVATE_KEY"),
		RelayerReserveWei:  envInt64("RELAYER_RESERVE_WEI", 100_000_000_000_000_000), // 0.1 native

		SettlementContract: envOr("SETTLEMENT_CONTRACT", "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),

		WETH: envOr("WETH_ADDRESS", "0x4200000000000000000000000000000000000006"),
		USDC: envOr("USDC_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),

		PythHermesURL: envOr("PYTH_HERMES_URL", "https://hermes.pyth.network"),
		CowAPIURL:     envOr("COW_API_URL", "https://api.cow.fi/base/api/v1"),

		PollInterval: envDuration("SETTLEMENT_POLL_INTERVAL", 5*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
