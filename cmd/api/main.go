package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/cache"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/config"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/flags"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/risk"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/rpc"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/server"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/session"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/staleness"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/storage"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/venue"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tokens := units.NewRegistry()
	if cfg.TokensFile != "" {
		n, err := tokens.LoadFile(cfg.TokensFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load token list")
		}
		logger.WithFields(logrus.Fields{"file": cfg.TokensFile, "tokens": n}).Info("token list loaded")
	}

	// Redis backs recent executions, transition fan-out and feature flags.
	// Without it the engine still trades, with defaults for every gate.
	var (
		execCache storage.ExecutionCache
		flagStore server.FlagStore
	)
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, running without history and flags")
		_ = rclient.Close()
	} else {
		defer rclient.Close()
		execCache = cache.NewRedisCacheFromClient(rclient, logger)
		fs, err := flags.NewStore(rclient, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create flags store")
		}
		flagStore = fs
	}

	var archive storage.TransitionStore
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer ch.Close()
		if err := ch.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to create transitions table")
		}
		archive = ch
	}

	recorder := storage.NewRecorder(execCache, archive, logger)
	recorded := make(chan struct{})
	go func() {
		defer close(recorded)
		recorder.Run(ctx)
	}()

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	venueClient := venue.NewClient(cfg.VenueBaseURL, cfg.VenueAPIKey, cfg.HTTPTimeout)

	quotes, err := quote.NewService(quote.ServiceConfig{
		Pricer:             venueClient,
		Tokens:             tokens,
		DefaultSlippageBps: uint16(cfg.DefaultSlippageBps),
		Logger:             logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create quote service")
	}

	limits := risk.NewManager(risk.Config{
		MaxSwapAmountSOL:  cfg.RiskMaxSwapSOL,
		DailyLimitSOL:     cfg.RiskDailyLimitSOL,
		MaxPriceImpactBps: uint16(cfg.RiskMaxPriceImpactBps),
		MaxSlippageBps:    uint16(cfg.RiskMaxSlippageBps),
		AllowedTokens:     cfg.RiskAllowedTokens,
		MinBalanceSOL:     cfg.RiskMinBalanceSOL,
	}, tokens, rpcClient)

	policy := staleness.New(cfg.QuoteTTL)
	sessions, err := session.NewRegistry(session.Config{
		Factory: func(id string) (*execution.Machine, error) {
			m, err := execution.NewMachine(execution.Config{
				ID:       id,
				Quoter:   quotes,
				Executor: venueClient,
				Guard:    limits,
				Policy:   policy,
				Logger:   logger,
			})
			if err != nil {
				return nil, err
			}
			m.OnTransition(recorder.Observe)
			return m, nil
		},
		TickInterval: cfg.QuoteTickInterval,
		IdleTimeout:  cfg.SessionIdleTimeout,
		MaxSessions:  cfg.MaxSessions,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create session registry")
	}
	go sessions.RunReaper(ctx, 0)

	orders := trigger.NewEngine(trigger.EngineConfig{
		Tokens:              tokens,
		Supply:              rpcClient,
		Placer:              venueClient,
		DefaultSlippageBps:  uint16(cfg.DefaultSlippageBps),
		PriorityFeeLamports: cfg.PriorityFeeLamports,
		JitoTipLamports:     cfg.JitoTipLamports,
		Logger:              logger,
	})

	h := &server.Handlers{
		Quotes:      quotes,
		Tokens:      tokens,
		Sessions:    sessions,
		Trigger:     orders,
		Risk:        limits,
		Cache:       execCache,
		Flags:       flagStore,
		DevMode:     cfg.DevMode,
		Logger:      logger,
		ExecTimeout: cfg.HTTPTimeout,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		// In-flight requests finish first, then sessions record their
		// teardown, and only then does the recorder stop and flush.
		_ = srv.Shutdown(context.Background())
		sessions.CloseAll()
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"addr":      cfg.APIAddr,
		"venue":     cfg.VenueBaseURL,
		"quote_ttl": cfg.QuoteTTL,
	}).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() != "http: Server closed" {
			logger.WithError(err).Fatal("api server failed")
		}
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
	<-recorded
	if n := recorder.Dropped(); n > 0 {
		logger.WithField("dropped", n).Warn("transitions dropped during run")
	}
}
