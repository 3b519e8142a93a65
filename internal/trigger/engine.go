package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/sirupsen/logrus"
)

const DefaultSlippageBps uint16 = 50

// Intent is what a user asks for: "buy 0.25 SOL worth of X when its market
// cap reaches $400k".
type Intent struct {
	WalletAddress       string   `json:"walletAddress"`
	Mint                string   `json:"mint"`
	Side                Side     `json:"side"`
	AmountUI            float64  `json:"amountUi"`
	TokenDecimals       *uint8   `json:"tokenDecimals,omitempty"`
	TargetMarketCapUSD  float64  `json:"targetMarketCapUsd"`
	CurrentMarketCapUSD float64  `json:"currentMarketCapUsd"`
	Supply              *float64 `json:"supply,omitempty"`
	Expiry              string   `json:"expiry,omitempty"`
	SlippageBps         *uint16  `json:"slippageBps,omitempty"`
}

// Params is the conditional order handed to the order venue.
type Params struct {
	WalletAddress       string    `json:"walletAddress"`
	Mint                string    `json:"mint"`
	OrderType           OrderType `json:"orderType"`
	InputAmount         uint64    `json:"inputAmount,string"`
	TokenDecimals       uint8     `json:"tokenDecimals"`
	TriggerPriceUSD     float64   `json:"triggerPriceUSD"`
	ExpiresIn           int64     `json:"expiresIn"`
	SlippageBps         uint16    `json:"slippageBps"`
	PriorityFeeLamports uint64    `json:"priorityFeeLamports"`
	JitoTipLamports     uint64    `json:"jitoTipLamports"`
}

// Ack is the venue's acknowledgement of a placed order.
type Ack struct {
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}

// SupplySource returns a token's circulating supply in UI units.
type SupplySource interface {
	TokenSupply(ctx context.Context, mint string) (float64, error)
}

// Placer is the conditional-order RPC.
type Placer interface {
	PlaceTriggerOrder(ctx context.Context, p Params) (Ack, error)
}

type EngineConfig struct {
	Tokens              *units.Registry
	Supply              SupplySource
	Placer              Placer
	DefaultSlippageBps  uint16
	PriorityFeeLamports uint64
	JitoTipLamports     uint64
	Logger              *logrus.Logger
}

// Engine turns intents into conditional orders.
type Engine struct {
	tokens      *units.Registry
	supply      SupplySource
	placer      Placer
	slippage    uint16
	priorityFee uint64
	jitoTip     uint64
	logger      *logrus.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Tokens == nil {
		cfg.Tokens = units.NewRegistry()
	}
	if cfg.DefaultSlippageBps == 0 {
		cfg.DefaultSlippageBps = DefaultSlippageBps
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Engine{
		tokens:      cfg.Tokens,
		supply:      cfg.Supply,
		placer:      cfg.Placer,
		slippage:    cfg.DefaultSlippageBps,
		priorityFee: cfg.PriorityFeeLamports,
		jitoTip:     cfg.JitoTipLamports,
		logger:      cfg.Logger,
	}
}

// Prepare validates the intent and builds the order without placing it.
// Buys spend SOL, sells spend the token itself.
func (e *Engine) Prepare(ctx context.Context, in Intent) (Params, error) {
	var p Params
	if strings.TrimSpace(in.WalletAddress) == "" || strings.TrimSpace(in.Mint) == "" {
		return p, fmt.Errorf("%w: walletAddress and mint are required", ErrInvalidOrder)
	}

	orderType, err := DetectOrderType(in.Side, in.TargetMarketCapUSD, in.CurrentMarketCapUSD)
	if err != nil {
		return p, err
	}

	expiry, err := ParseExpiry(in.Expiry)
	if err != nil {
		return p, err
	}

	tokenDecimals, err := e.tokens.ResolveDecimals(in.Mint, in.TokenDecimals)
	if err != nil {
		return p, err
	}

	spendDecimals := uint8(9)
	if in.Side == SideSell {
		spendDecimals = tokenDecimals
	}
	inputAmount, err := units.ToAtomic(in.AmountUI, spendDecimals)
	if err != nil {
		return p, err
	}

	supply, err := e.resolveSupply(ctx, in)
	if err != nil {
		return p, err
	}
	price, err := CalcTriggerPrice(in.TargetMarketCapUSD, supply)
	if err != nil {
		return p, err
	}

	slippage := e.slippage
	if in.SlippageBps != nil {
		slippage = *in.SlippageBps
	}

	return Params{
		WalletAddress:       in.WalletAddress,
		Mint:                in.Mint,
		OrderType:           orderType,
		InputAmount:         inputAmount,
		TokenDecimals:       tokenDecimals,
		TriggerPriceUSD:     price,
		ExpiresIn:           int64(expiry / time.Second),
		SlippageBps:         slippage,
		PriorityFeeLamports: e.priorityFee,
		JitoTipLamports:     e.jitoTip,
	}, nil
}

// Place prepares the order and sends it to the venue. There is no retry.
func (e *Engine) Place(ctx context.Context, in Intent) (Params, Ack, error) {
	if e.placer == nil {
		return Params{}, Ack{}, fmt.Errorf("trigger engine: no order placer configured")
	}
	p, err := e.Prepare(ctx, in)
	if err != nil {
		return Params{}, Ack{}, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"mint":          p.Mint,
		"order_type":    p.OrderType,
		"trigger_price": p.TriggerPriceUSD,
		"expires_in":    p.ExpiresIn,
	})

	ack, err := e.placer.PlaceTriggerOrder(ctx, p)
	if err != nil {
		log.WithError(err).Warn("trigger order rejected")
		return p, Ack{}, fmt.Errorf("%w: %w", ErrPlacementFault, err)
	}
	log.WithField("order_id", ack.OrderID).Info("trigger order placed")
	return p, ack, nil
}

func (e *Engine) resolveSupply(ctx context.Context, in Intent) (float64, error) {
	if in.Supply != nil {
		return *in.Supply, nil
	}
	if e.supply == nil {
		return 0, fmt.Errorf("%w: supply unknown for %s", ErrTriggerUnresolvable, in.Mint)
	}
	s, err := e.supply.TokenSupply(ctx, in.Mint)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch supply: %w", ErrTriggerUnresolvable, err)
	}
	return s, nil
}
