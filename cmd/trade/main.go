// trade drives the execution engine from a terminal: quote, swap with a
// confirmation step, and conditional orders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/config"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/risk"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/rpc"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/venue"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	walletAddr string
	verbose    bool
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// deps is everything a subcommand may need, built once from the environment.
type deps struct {
	cfg     *config.Config
	logger  *logrus.Logger
	tokens  *units.Registry
	rpc     *rpc.Client
	venue   *venue.Client
	quotes  *quote.Service
	limits  *risk.Manager
	address string
}

func newDeps() (*deps, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	tokens := units.NewRegistry()
	if cfg.TokensFile != "" {
		if _, err := tokens.LoadFile(cfg.TokensFile); err != nil {
			return nil, err
		}
	}

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
		return nil, err
	}

	address := walletAddr
	if address == "" && cfg.WalletPrivateKey != "" {
		w, err := wallet.NewWallet(wallet.WalletConfig{PrivateKey: cfg.WalletPrivateKey, RPC: rpcClient})
		if err != nil {
			return nil, fmt.Errorf("load wallet: %w", err)
		}
		address = w.Address()
	}
	if address != "" {
		if _, err := wallet.ParseAddress(address); err != nil {
			return nil, err
		}
	}

	limits := risk.NewManager(risk.Config{
		MaxSwapAmountSOL:  cfg.RiskMaxSwapSOL,
		DailyLimitSOL:     cfg.RiskDailyLimitSOL,
		MaxPriceImpactBps: uint16(cfg.RiskMaxPriceImpactBps),
		MaxSlippageBps:    uint16(cfg.RiskMaxSlippageBps),
		AllowedTokens:     cfg.RiskAllowedTokens,
		MinBalanceSOL:     cfg.RiskMinBalanceSOL,
	}, tokens, rpcClient)

	return &deps{
		cfg:     cfg,
		logger:  logger,
		tokens:  tokens,
		rpc:     rpcClient,
		venue:   venueClient,
		quotes:  quotes,
		limits:  limits,
		address: address,
	}, nil
}

func main() {
	loadEnv()

	rootCmd := &cobra.Command{
		Use:           "trade",
		Short:         "Quote and execute swaps and conditional orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&walletAddr, "wallet", "w", "", "wallet address (defaults to the WALLET_PRIVATE_KEY wallet)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(swapCmd())
	rootCmd.AddCommand(triggerCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(tokensCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
