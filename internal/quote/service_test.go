package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePricer struct {
	calls []PricingRequest
	raw   Raw
	err   error
}

func (f *fakePricer) Quote(_ context.Context, req PricingRequest) (Raw, error) {
	f.calls = append(f.calls, req)
	return f.raw, f.err
}

func newTestService(t *testing.T, p Pricer, now func() time.Time) *Service {
	t.Helper()
	s, err := NewService(ServiceConfig{Pricer: p, Now: now})
	require.NoError(t, err)
	return s
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestService_RequestQuote(t *testing.T) {
	p := &fakePricer{raw: Raw{"outAmount": "72000000", "priceImpactPct": "0.001", "routePlan": []any{map[string]any{}}}}
	s := newTestService(t, p, fixedClock(1_700_000_000_000))

	res, err := s.RequestQuote(context.Background(), Request{
		WalletAddress: "wallet",
		InputMint:     units.MintSOL,
		OutputMint:    units.MintUSDC,
		AmountUI:      0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(500_000_000), res.AmountAtomic)
	assert.Equal(t, uint8(9), res.InputTokenDecimals)
	require.NotNil(t, res.OutputTokenDecimals)
	assert.Equal(t, uint8(6), *res.OutputTokenDecimals)
	assert.Equal(t, DefaultSlippageBps, res.SlippageBps)
	assert.Equal(t, int64(1_700_000_000_000), res.RequestedAtMs)
	require.NotNil(t, res.Summary.AmountOutUI)
	assert.InDelta(t, 72.0, *res.Summary.AmountOutUI, 1e-9)
	assert.Equal(t, p.raw, res.Raw)

	require.Len(t, p.calls, 1)
	call := p.calls[0]
	assert.Equal(t, "wallet", call.WalletAddress)
	assert.Equal(t, uint64(500_000_000), call.AmountAtomic)
	assert.Equal(t, uint16(50), call.SlippageBps)
	assert.Equal(t, FeeHint{}, call.Fee, "quotes carry no priority fee and no tip")
}

func TestService_ValidationFailsBeforeNetwork(t *testing.T) {
	p := &fakePricer{raw: Raw{"outAmount": "1"}}
	s := newTestService(t, p, nil)

	_, err := s.RequestQuote(context.Background(), Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 0})
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	_, err = s.RequestQuote(context.Background(), Request{InputMint: "Unknown", OutputMint: units.MintUSDC, AmountUI: 1})
	assert.ErrorIs(t, err, units.ErrDecimalsUnavailable)

	assert.Empty(t, p.calls)
}

func TestService_ExplicitDecimalsAndSlippage(t *testing.T) {
	p := &fakePricer{raw: Raw{"outAmount": "5"}}
	s := newTestService(t, p, nil)
	dec := uint8(2)
	slip := uint16(300)

	res, err := s.RequestQuote(context.Background(), Request{
		InputMint:          "CustomMint",
		OutputMint:         "OtherCustomMint",
		AmountUI:           1.25,
		InputTokenDecimals: &dec,
		SlippageBps:        &slip,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(125), res.AmountAtomic)
	assert.Equal(t, uint16(300), res.SlippageBps)
	assert.Nil(t, res.OutputTokenDecimals)
	assert.Nil(t, res.Summary.AmountOutUI)
}

func TestService_Faults(t *testing.T) {
	boom := errors.New("connection reset")
	s := newTestService(t, &fakePricer{err: boom}, nil)
	_, err := s.RequestQuote(context.Background(), Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 1})
	assert.ErrorIs(t, err, ErrQuoteFault)
	assert.ErrorIs(t, err, boom)

	s = newTestService(t, &fakePricer{}, nil)
	_, err = s.RequestQuote(context.Background(), Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 1})
	assert.ErrorIs(t, err, ErrQuoteFault)
}

func TestService_RequestedAtIsMonotonic(t *testing.T) {
	clock := int64(5_000)
	p := &fakePricer{raw: Raw{"outAmount": "1"}}
	s := newTestService(t, p, func() time.Time { return time.UnixMilli(clock) })
	req := Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 1}

	a, err := s.RequestQuote(context.Background(), req)
	require.NoError(t, err)
	clock = 4_000 // wall clock stepped back
	b, err := s.RequestQuote(context.Background(), req)
	require.NoError(t, err)
	c, err := s.RequestQuote(context.Background(), req)
	require.NoError(t, err)

	assert.Less(t, a.RequestedAtMs, b.RequestedAtMs)
	assert.Less(t, b.RequestedAtMs, c.RequestedAtMs)
}

func TestNewService_RequiresPricer(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
}
