package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Solana RPC
	RPCUrl string

	// Trading venue
	VenueBaseURL string
	VenueAPIKey  string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Quote lifecycle
	QuoteTTL           time.Duration
	QuoteTickInterval  time.Duration
	DefaultSlippageBps int

	// Trigger order fees
	PriorityFeeLamports uint64
	JitoTipLamports     uint64

	// Sessions
	SessionIdleTimeout time.Duration
	MaxSessions        int

	// Risk limits
	RiskMaxSwapSOL        float64
	RiskDailyLimitSOL     float64
	RiskMaxPriceImpactBps int
	RiskMaxSlippageBps    int
	RiskMinBalanceSOL     float64
	RiskAllowedTokens     []string

	// Token list overlay (YAML)
	TokensFile string

	// Wallet used by the CLI
	WalletPrivateKey string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// RPC
		RPCUrl: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),

		// Venue
		VenueBaseURL: getEnv("VENUE_BASE_URL", "https://api.jup.ag/swap/v1"),
		VenueAPIKey:  getEnv("VENUE_API_KEY", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// Quotes
		QuoteTTL:           getDurationEnv("QUOTE_TTL", 30*time.Second),
		QuoteTickInterval:  getDurationEnv("QUOTE_TICK_INTERVAL", time.Second),
		DefaultSlippageBps: getIntEnv("DEFAULT_SLIPPAGE_BPS", 50),

		// Fees
		PriorityFeeLamports: getUintEnv("PRIORITY_FEE_LAMPORTS", 0),
		JitoTipLamports:     getUintEnv("JITO_TIP_LAMPORTS", 0),

		// Sessions
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		MaxSessions:        getIntEnv("MAX_SESSIONS", 1000),

		// Risk
		RiskMaxSwapSOL:        getFloatEnv("RISK_MAX_SWAP_SOL", 1.0),
		RiskDailyLimitSOL:     getFloatEnv("RISK_DAILY_LIMIT_SOL", 10.0),
		RiskMaxPriceImpactBps: getIntEnv("RISK_MAX_PRICE_IMPACT_BPS", 500),
		RiskMaxSlippageBps:    getIntEnv("RISK_MAX_SLIPPAGE_BPS", 1000),
		RiskMinBalanceSOL:     getFloatEnv("RISK_MIN_BALANCE_SOL", 0.05),
		RiskAllowedTokens:     getListEnv("RISK_ALLOWED_TOKENS"),

		TokensFile:       getEnv("TOKENS_FILE", ""),
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIAddr) == "" {
		return fmt.Errorf("API_ADDR is required")
	}
	if strings.TrimSpace(c.VenueBaseURL) == "" {
		return fmt.Errorf("VENUE_BASE_URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.QuoteTTL < time.Second {
		return fmt.Errorf("QUOTE_TTL must be at least 1s")
	}
	if c.QuoteTickInterval <= 0 || c.QuoteTickInterval > c.QuoteTTL {
		return fmt.Errorf("QUOTE_TICK_INTERVAL must be > 0 and <= QUOTE_TTL")
	}
	if c.DefaultSlippageBps < 1 || c.DefaultSlippageBps > 10_000 {
		return fmt.Errorf("DEFAULT_SLIPPAGE_BPS must be in [1, 10000]")
	}
	if c.RiskMaxPriceImpactBps < 0 || c.RiskMaxPriceImpactBps > 10_000 {
		return fmt.Errorf("RISK_MAX_PRICE_IMPACT_BPS must be in [0, 10000]")
	}
	if c.RiskMaxSlippageBps < 0 || c.RiskMaxSlippageBps > 10_000 {
		return fmt.Errorf("RISK_MAX_SLIPPAGE_BPS must be in [0, 10000]")
	}
	if c.RiskMaxSwapSOL < 0 || c.RiskDailyLimitSOL < 0 || c.RiskMinBalanceSOL < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must be >= 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
