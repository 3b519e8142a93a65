package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type pricer struct{}

func (pricer) Quote(context.Context, quote.PricingRequest) (quote.Raw, error) {
	return quote.Raw{"outAmount": "1000"}, nil
}

type executor struct{}

func (executor) Execute(context.Context, execution.ExecuteRequest) (execution.ExecuteResponse, error) {
	return execution.ExecuteResponse{Signature: "sig"}, nil
}

func newTestRegistry(t *testing.T, c *clock, cfg Config) *Registry {
	t.Helper()
	svc, err := quote.NewService(quote.ServiceConfig{Pricer: pricer{}, Now: c.Now})
	require.NoError(t, err)

	cfg.Now = c.Now
	cfg.TickInterval = 5 * time.Millisecond
	cfg.Factory = func(id string) (*execution.Machine, error) {
		return execution.NewMachine(execution.Config{ID: id, Quoter: svc, Executor: executor{}, Now: c.Now})
	}
	r, err := NewRegistry(cfg)
	require.NoError(t, err)
	t.Cleanup(r.CloseAll)
	return r
}

func TestRegistry_Lifecycle(t *testing.T) {
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	r := newTestRegistry(t, c, Config{})

	id, m, err := r.Create()
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, m.ID())
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = m.RequestQuote(context.Background(), quote.Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 1})
	require.NoError(t, err)

	require.NoError(t, r.Close(id))
	assert.Equal(t, execution.PhaseIdle, m.Phase(), "teardown resets the machine")
	assert.Zero(t, r.Len())

	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Close(id), ErrNotFound)
}

func TestRegistry_WatcherExpiresQuotes(t *testing.T) {
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	r := newTestRegistry(t, c, Config{})

	_, m, err := r.Create()
	require.NoError(t, err)
	_, err = m.RequestQuote(context.Background(), quote.Request{InputMint: units.MintSOL, OutputMint: units.MintUSDC, AmountUI: 1})
	require.NoError(t, err)

	c.Advance(31 * time.Second)
	assert.Eventually(t, func() bool { return m.Phase() == execution.PhaseIdle }, time.Second, 5*time.Millisecond)
}

func TestRegistry_MaxSessions(t *testing.T) {
	c := &clock{t: time.Now()}
	r := newTestRegistry(t, c, Config{MaxSessions: 1})

	_, _, err := r.Create()
	require.NoError(t, err)
	_, _, err = r.Create()
	assert.ErrorIs(t, err, ErrTooMany)
}

func TestRegistry_Reap(t *testing.T) {
	c := &clock{t: time.Now()}
	r := newTestRegistry(t, c, Config{IdleTimeout: time.Minute})

	stale, _, err := r.Create()
	require.NoError(t, err)
	c.Advance(45 * time.Second)
	fresh, _, err := r.Create()
	require.NoError(t, err)
	c.Advance(30 * time.Second)

	assert.Equal(t, 1, r.Reap())
	_, err = r.Get(stale)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh)
	assert.NoError(t, err)
}

func TestRegistry_FactoryError(t *testing.T) {
	r, err := NewRegistry(Config{Factory: func(string) (*execution.Machine, error) {
		return nil, errors.New("boom")
	}})
	require.NoError(t, err)
	defer r.CloseAll()

	_, _, err = r.Create()
	assert.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestNewRegistry_RequiresFactory(t *testing.T) {
	_, err := NewRegistry(Config{})
	assert.Error(t, err)
}
