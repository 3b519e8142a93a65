package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Boundary(t *testing.T) {
	p := New(30 * time.Second)
	const T = int64(1_700_000_000_000)

	assert.Equal(t, int64(30), p.SecondsRemaining(T, T))
	assert.False(t, p.IsStale(T, T))

	assert.Equal(t, int64(1), p.SecondsRemaining(T, T+29_000))
	assert.False(t, p.IsStale(T, T+29_000))

	assert.Equal(t, int64(1), p.SecondsRemaining(T, T+29_999))
	assert.False(t, p.IsStale(T, T+29_999))

	assert.Equal(t, int64(0), p.SecondsRemaining(T, T+30_000))
	assert.True(t, p.IsStale(T, T+30_000))

	assert.Equal(t, int64(0), p.SecondsRemaining(T, T+120_000))
	assert.True(t, p.IsStale(T, T+120_000))
}

func TestPolicy_ClockSkewFloorsTowardsPast(t *testing.T) {
	p := New(30 * time.Second)
	const T = int64(10_000)

	// now slightly before the request: floor(-0.5) is -1, so one extra second.
	assert.Equal(t, int64(31), p.SecondsRemaining(T, T-500))
}

func TestPolicy_Defaults(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).TTL)
	assert.Equal(t, int64(30), Policy{}.SecondsRemaining(0, 0))
}

func TestPolicy_Deadline(t *testing.T) {
	p := New(30 * time.Second)
	const T = int64(1_000)
	d := p.Deadline(T)
	assert.Equal(t, T+30_000, d.UnixMilli())
	assert.True(t, p.IsStale(T, d.UnixMilli()))
	assert.False(t, p.IsStale(T, d.UnixMilli()-1))
}
