package quote

import (
	"context"
	"errors"
	"time"
)

// DefaultSlippageBps applies when a request carries no slippage.
const DefaultSlippageBps uint16 = 50

var (
	// ErrQuoteFault means the pricing venue failed or returned nothing usable.
	ErrQuoteFault = errors.New("quote fault")
	// ErrInvalidRequest covers malformed requests other than the amount.
	ErrInvalidRequest = errors.New("invalid quote request")
)

// Request is a user's trade intent expressed in human units.
type Request struct {
	WalletAddress       string  `json:"walletAddress"`
	InputMint           string  `json:"inputMint"`
	OutputMint          string  `json:"outputMint"`
	AmountUI            float64 `json:"amountUi"`
	InputTokenDecimals  *uint8  `json:"inputTokenDecimals,omitempty"`
	OutputTokenDecimals *uint8  `json:"outputTokenDecimals,omitempty"`
	SlippageBps         *uint16 `json:"slippageBps,omitempty"`
}

// Raw is the upstream payload exactly as decoded.
type Raw map[string]any

// Summary is the canonical view of a quote. Every field is optional: an
// absent value means the venue did not say, never zero.
type Summary struct {
	AmountInAtomic     *uint64  `json:"amountInAtomic,omitempty"`
	AmountInMaxAtomic  *uint64  `json:"amountInMaxAtomic,omitempty"`
	OutAmountAtomic    *uint64  `json:"outAmountAtomic,omitempty"`
	MinOutAmountAtomic *uint64  `json:"minOutAmountAtomic,omitempty"`
	PriceImpactPercent *float64 `json:"priceImpactPercent,omitempty"`
	FeeAmountSol       *float64 `json:"feeAmountSol,omitempty"`
	FeeRateBps         *float64 `json:"feeRateBps,omitempty"`
	RouteHopCount      *int     `json:"routeHopCount,omitempty"`
	AmountOutUI        *float64 `json:"amountOutUi,omitempty"`
	MinOutAmountUI     *float64 `json:"minOutAmountUi,omitempty"`
}

// Result is produced once per request and never modified afterwards; a new
// quote is a new Result. RequestedAtMs is the only input to staleness.
type Result struct {
	RequestedAtMs       int64   `json:"requestedAtMs"`
	WalletAddress       string  `json:"walletAddress"`
	InputMint           string  `json:"inputMint"`
	OutputMint          string  `json:"outputMint"`
	InputTokenDecimals  uint8   `json:"inputTokenDecimals"`
	OutputTokenDecimals *uint8  `json:"outputTokenDecimals,omitempty"`
	AmountUI            float64 `json:"amountUi"`
	AmountAtomic        uint64  `json:"amountAtomic"`
	SlippageBps         uint16  `json:"slippageBps"`
	Summary             Summary `json:"summary"`
	Raw                 Raw     `json:"raw,omitempty"`
}

// RequestedAt returns RequestedAtMs as a time.
func (r Result) RequestedAt() time.Time {
	return time.UnixMilli(r.RequestedAtMs)
}

// FeeHint carries priority fee and tip. Quotes are always requested with
// neither.
type FeeHint struct {
	PriorityFeeLamports uint64 `json:"priorityFeeLamports"`
	JitoTipLamports     uint64 `json:"jitoTipLamports"`
}

// PricingRequest is what the pricing venue is asked.
type PricingRequest struct {
	WalletAddress string
	InputMint     string
	OutputMint    string
	AmountAtomic  uint64
	SlippageBps   uint16
	Fee           FeeHint
}

// Pricer is the pricing RPC. Any error is treated as a QuoteFault.
type Pricer interface {
	Quote(ctx context.Context, req PricingRequest) (Raw, error)
}

// PricerFunc adapts a function to Pricer.
type PricerFunc func(ctx context.Context, req PricingRequest) (Raw, error)

func (f PricerFunc) Quote(ctx context.Context, req PricingRequest) (Raw, error) {
	return f(ctx, req)
}
