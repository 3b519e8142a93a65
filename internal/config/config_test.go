package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.QuoteTTL)
	assert.Equal(t, time.Second, cfg.QuoteTickInterval)
	assert.Equal(t, 50, cfg.DefaultSlippageBps)
	assert.Empty(t, cfg.ClickHouseAddr, "archive is off unless configured")
	assert.Nil(t, cfg.RiskAllowedTokens)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("QUOTE_TTL", "45s")
	t.Setenv("DEFAULT_SLIPPAGE_BPS", "120")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("PRIORITY_FEE_LAMPORTS", "10000")
	t.Setenv("RISK_ALLOWED_TOKENS", "SOL, USDC,,BONK ")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 45*time.Second, cfg.QuoteTTL)
	assert.Equal(t, 120, cfg.DefaultSlippageBps)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, uint64(10_000), cfg.PriorityFeeLamports)
	assert.Equal(t, []string{"SOL", "USDC", "BONK"}, cfg.RiskAllowedTokens)
	assert.Equal(t, 5, cfg.MaxRetries, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.APIAddr = " " }},
		{"empty venue", func(c *Config) { c.VenueBaseURL = "" }},
		{"ttl below a second", func(c *Config) { c.QuoteTTL = 500 * time.Millisecond }},
		{"tick longer than ttl", func(c *Config) { c.QuoteTickInterval = time.Minute }},
		{"zero slippage", func(c *Config) { c.DefaultSlippageBps = 0 }},
		{"slippage above 100%", func(c *Config) { c.DefaultSlippageBps = 10_001 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"negative risk", func(c *Config) { c.RiskDailyLimitSOL = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
