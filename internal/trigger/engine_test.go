package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupply struct {
	supply float64
	err    error
	calls  int
}

func (f *fakeSupply) TokenSupply(_ context.Context, _ string) (float64, error) {
	f.calls++
	return f.supply, f.err
}

type fakePlacer struct {
	got []Params
	ack Ack
	err error
}

func (f *fakePlacer) PlaceTriggerOrder(_ context.Context, p Params) (Ack, error) {
	f.got = append(f.got, p)
	return f.ack, f.err
}

func bonkIntent(side Side, amount float64) Intent {
	return Intent{
		WalletAddress:       "wallet",
		Mint:                units.MintBONK,
		Side:                side,
		AmountUI:            amount,
		TargetMarketCapUSD:  400_000,
		CurrentMarketCapUSD: 500_000,
		Expiry:              "1h",
	}
}

func TestEngine_PrepareBuy(t *testing.T) {
	supply := &fakeSupply{supply: 1_000_000_000}
	e := NewEngine(EngineConfig{Supply: supply, PriorityFeeLamports: 10_000, JitoTipLamports: 5_000})

	p, err := e.Prepare(context.Background(), bonkIntent(SideBuy, 0.25))
	require.NoError(t, err)

	assert.Equal(t, EntryLimit, p.OrderType)
	assert.Equal(t, uint64(250_000_000), p.InputAmount, "buys spend SOL")
	assert.Equal(t, uint8(5), p.TokenDecimals)
	assert.InDelta(t, 0.0004, p.TriggerPriceUSD, 1e-15)
	assert.Equal(t, int64(3600), p.ExpiresIn)
	assert.Equal(t, DefaultSlippageBps, p.SlippageBps)
	assert.Equal(t, uint64(10_000), p.PriorityFeeLamports)
	assert.Equal(t, uint64(5_000), p.JitoTipLamports)
	assert.Equal(t, 1, supply.calls)
}

func TestEngine_PrepareSellUsesTokenDecimals(t *testing.T) {
	e := NewEngine(EngineConfig{Supply: &fakeSupply{supply: 1e9}})
	slip := uint16(200)
	in := bonkIntent(SideSell, 1000)
	in.SlippageBps = &slip

	p, err := e.Prepare(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ExitStop, p.OrderType)
	assert.Equal(t, uint64(100_000_000), p.InputAmount)
	assert.Equal(t, uint16(200), p.SlippageBps)
}

func TestEngine_ExplicitSupplySkipsLookup(t *testing.T) {
	src := &fakeSupply{err: errors.New("rpc down")}
	e := NewEngine(EngineConfig{Supply: src})
	supply := 2_000_000.0
	in := bonkIntent(SideBuy, 1)
	in.Supply = &supply

	p, err := e.Prepare(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p.TriggerPriceUSD, 1e-12)
	assert.Zero(t, src.calls)
}

func TestEngine_Unresolvable(t *testing.T) {
	e := NewEngine(EngineConfig{Supply: &fakeSupply{supply: 0}})
	_, err := e.Prepare(context.Background(), bonkIntent(SideBuy, 1))
	assert.ErrorIs(t, err, ErrTriggerUnresolvable)

	e = NewEngine(EngineConfig{Supply: &fakeSupply{err: errors.New("timeout")}})
	_, err = e.Prepare(context.Background(), bonkIntent(SideBuy, 1))
	assert.ErrorIs(t, err, ErrTriggerUnresolvable)

	e = NewEngine(EngineConfig{})
	_, err = e.Prepare(context.Background(), bonkIntent(SideBuy, 1))
	assert.ErrorIs(t, err, ErrTriggerUnresolvable)
}

func TestEngine_ValidationBeforeSupply(t *testing.T) {
	src := &fakeSupply{supply: 1e9}
	e := NewEngine(EngineConfig{Supply: src})

	_, err := e.Prepare(context.Background(), bonkIntent(SideBuy, 0))
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	in := bonkIntent(SideBuy, 1)
	in.Mint = "UnknownMint"
	_, err = e.Prepare(context.Background(), in)
	assert.ErrorIs(t, err, units.ErrDecimalsUnavailable)

	in = bonkIntent(SideBuy, 1)
	in.Expiry = "3d"
	_, err = e.Prepare(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	assert.Zero(t, src.calls)
}

func TestEngine_Place(t *testing.T) {
	placer := &fakePlacer{ack: Ack{OrderID: "ord-1", Status: "open"}}
	e := NewEngine(EngineConfig{Supply: &fakeSupply{supply: 1e9}, Placer: placer})

	p, ack, err := e.Place(context.Background(), bonkIntent(SideBuy, 0.1))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", ack.OrderID)
	require.Len(t, placer.got, 1)
	assert.Equal(t, p, placer.got[0])

	placer.err = errors.New("rejected")
	_, _, err = e.Place(context.Background(), bonkIntent(SideBuy, 0.1))
	assert.ErrorIs(t, err, ErrPlacementFault)
	assert.Len(t, placer.got, 2)
}

func TestEngine_PlaceWithoutPlacer(t *testing.T) {
	e := NewEngine(EngineConfig{Supply: &fakeSupply{supply: 1e9}})
	_, _, err := e.Place(context.Background(), bonkIntent(SideBuy, 0.1))
	assert.Error(t, err)
}
