package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_LatestWins(t *testing.T) {
	var c Counter
	var applied []string

	apply := func(tk Ticket, v string) {
		if c.IsCurrent(tk) {
			applied = append(applied, v)
		}
	}

	a := c.Next()
	b := c.Next()

	// B resolves first, then the slower A.
	apply(b, "B")
	apply(a, "A")

	assert.Equal(t, []string{"B"}, applied)
}

func TestCounter_FailureOfSupersededRequestIsIgnored(t *testing.T) {
	var c Counter
	a := c.Next()
	_ = c.Next()
	assert.False(t, c.IsCurrent(a), "a failed completion of A must not apply either")
}

func TestCounter_Invalidate(t *testing.T) {
	var c Counter
	a := c.Next()
	require.True(t, c.IsCurrent(a))
	c.Invalidate()
	assert.False(t, c.IsCurrent(a))
}

func TestCounter_IndependentOperations(t *testing.T) {
	var quotes, trending Counter
	q := quotes.Next()
	tr := trending.Next()
	_ = trending.Next()

	assert.True(t, quotes.IsCurrent(q))
	assert.False(t, trending.IsCurrent(tr))
}

func TestCounter_Concurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Next()
		}()
	}
	wg.Wait()

	last := c.Next()
	assert.Equal(t, Ticket(51), last)
	assert.True(t, c.IsCurrent(last))
}

func TestGuard_AppliesCurrentResult(t *testing.T) {
	var c Counter
	var mu sync.Mutex
	tk := c.Next()

	got, err := Guard(context.Background(), &c, tk, &mu,
		func(context.Context) (int, error) { return 21, nil },
		func(v int, err error) (int, error) { return v * 2, err },
	)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestGuard_PassesErrorsToApply(t *testing.T) {
	var c Counter
	boom := errors.New("timeout")
	var seen error

	_, err := Guard(context.Background(), &c, c.Next(), nil,
		func(context.Context) (string, error) { return "", boom },
		func(_ string, err error) (string, error) { seen = err; return "", err },
	)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, seen, boom)
}

func TestGuard_SkipsSupersededResult(t *testing.T) {
	var c Counter
	var mu sync.Mutex
	a := c.Next()
	applied := false

	_, err := Guard(context.Background(), &c, a, &mu,
		func(context.Context) (int, error) {
			// A newer request is issued while this one is in flight.
			c.Next()
			return 1, nil
		},
		func(int, error) (int, error) { applied = true; return 1, nil },
	)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.False(t, applied)
}

func TestGuard_InvalidateDuringCall(t *testing.T) {
	var c Counter
	var mu sync.Mutex
	tk := c.Next()

	_, err := Guard(context.Background(), &c, tk, &mu,
		func(context.Context) (struct{}, error) {
			mu.Lock()
			c.Invalidate()
			mu.Unlock()
			return struct{}{}, nil
		},
		func(struct{}, error) (struct{}, error) { return struct{}{}, nil },
	)
	assert.ErrorIs(t, err, ErrSuperseded)
}
