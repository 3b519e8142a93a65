package quote

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/sirupsen/logrus"
)

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Pricer Pricer
	Tokens *units.Registry
	// DefaultSlippageBps overrides DefaultSlippageBps when > 0.
	DefaultSlippageBps uint16
	Now                func() time.Time
	Logger             *logrus.Logger
}

// Service turns a Request into a timestamped Result. It never retries: a
// failed pricing call is returned to the caller, who decides whether to ask
// again.
type Service struct {
	pricer          Pricer
	tokens          *units.Registry
	defaultSlippage uint16
	now             func() time.Time
	logger          *logrus.Logger

	mu        sync.Mutex
	lastStamp int64
}

// NewService creates a quote service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pricer == nil {
		return nil, fmt.Errorf("quote service: pricer is nil")
	}
	if cfg.Tokens == nil {
		cfg.Tokens = units.NewRegistry()
	}
	if cfg.DefaultSlippageBps == 0 {
		cfg.DefaultSlippageBps = DefaultSlippageBps
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Service{
		pricer:          cfg.Pricer,
		tokens:          cfg.Tokens,
		defaultSlippage: cfg.DefaultSlippageBps,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}, nil
}

// Tokens exposes the registry used to resolve decimals.
func (s *Service) Tokens() *units.Registry { return s.tokens }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

type prepared struct {
	inDecimals   uint8
	outDecimals  *uint8
	slippage     uint16
	amountAtomic uint64
}

// Validate runs every local check RequestQuote performs before it touches the
// network.
func (s *Service) Validate(req Request) error {
	_, err := s.prepare(req)
	return err
}

func (s *Service) prepare(req Request) (prepared, error) {
	var p prepared
	if math.IsNaN(req.AmountUI) || math.IsInf(req.AmountUI, 0) || req.AmountUI <= 0 {
		return p, fmt.Errorf("%w: amount must be a finite number > 0", units.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.InputMint) == "" || strings.TrimSpace(req.OutputMint) == "" {
		return p, fmt.Errorf("%w: inputMint and outputMint are required", ErrInvalidRequest)
	}

	inDecimals, err := s.tokens.ResolveDecimals(req.InputMint, req.InputTokenDecimals)
	if err != nil {
		return p, err
	}
	p.inDecimals = inDecimals

	p.outDecimals = req.OutputTokenDecimals
	if p.outDecimals == nil {
		if d, err := s.tokens.ResolveDecimals(req.OutputMint, nil); err == nil {
			p.outDecimals = &d
		}
	}

	p.slippage = s.defaultSlippage
	if req.SlippageBps != nil {
		p.slippage = *req.SlippageBps
	}

	p.amountAtomic, err = units.ToAtomic(req.AmountUI, inDecimals)
	if err != nil {
		return p, err
	}
	return p, nil
}

// RequestQuote validates req, prices it on the venue and returns the result.
// Validation errors are returned before any network call.
func (s *Service) RequestQuote(ctx context.Context, req Request) (Result, error) {
	p, err := s.prepare(req)
	if err != nil {
		return Result{}, err
	}
	inDecimals, outDecimals, slippage, amountAtomic := p.inDecimals, p.outDecimals, p.slippage, p.amountAtomic

	// Issue time, not completion time, is what staleness is measured from.
	requestedAt := s.stamp()

	log := s.logger.WithFields(logrus.Fields{
		"input_mint":    req.InputMint,
		"output_mint":   req.OutputMint,
		"amount_atomic": amountAtomic,
		"slippage_bps":  slippage,
	})
	log.Debug("requesting quote")

	raw, err := s.pricer.Quote(ctx, PricingRequest{
		WalletAddress: req.WalletAddress,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		AmountAtomic:  amountAtomic,
		SlippageBps:   slippage,
		Fee:           FeeHint{},
	})
	if err != nil {
		log.WithError(err).Warn("quote request failed")
		return Result{}, fmt.Errorf("%w: %w", ErrQuoteFault, err)
	}
	if len(raw) == 0 {
		return Result{}, fmt.Errorf("%w: empty response from venue", ErrQuoteFault)
	}

	return Result{
		RequestedAtMs:       requestedAt,
		WalletAddress:       req.WalletAddress,
		InputMint:           req.InputMint,
		OutputMint:          req.OutputMint,
		InputTokenDecimals:  inDecimals,
		OutputTokenDecimals: outDecimals,
		AmountUI:            req.AmountUI,
		AmountAtomic:        amountAtomic,
		SlippageBps:         slippage,
		Summary:             Normalize(raw, outDecimals),
		Raw:                 raw,
	}, nil
}

// stamp returns the current time in ms, strictly greater than any earlier
// stamp from this service even if the wall clock steps back.
func (s *Service) stamp() int64 {
	now := s.now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now <= s.lastStamp {
		now = s.lastStamp + 1
	}
	s.lastStamp = now
	return now
}
