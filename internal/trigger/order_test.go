package trigger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOrderType(t *testing.T) {
	tests := []struct {
		side    Side
		target  float64
		current float64
		want    OrderType
	}{
		{SideBuy, 400_000, 500_000, EntryLimit},
		{SideBuy, 600_000, 500_000, EntryStop},
		{SideBuy, 500_000, 500_000, EntryStop},
		{SideSell, 600_000, 500_000, ExitLimit},
		{SideSell, 400_000, 500_000, ExitStop},
		{SideSell, 500_000, 500_000, ExitStop},
	}
	for _, tt := range tests {
		got, err := DetectOrderType(tt.side, tt.target, tt.current)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s target=%v current=%v", tt.side, tt.target, tt.current)
	}
}

func TestDetectOrderType_Invalid(t *testing.T) {
	_, err := DetectOrderType("hold", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = DetectOrderType(SideBuy, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = DetectOrderType(SideSell, 1, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCalcTriggerPrice(t *testing.T) {
	price, err := CalcTriggerPrice(400_000, 1_000_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, price, 1e-15)

	price, err = CalcTriggerPrice(1_000_000, 999_999_999.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0010000000005, price, 1e-15)

	for _, supply := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := CalcTriggerPrice(400_000, supply)
		assert.ErrorIs(t, err, ErrTriggerUnresolvable, "supply=%v", supply)
	}
}

func TestParseExpiry(t *testing.T) {
	d, err := ParseExpiry("1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	d, err = ParseExpiry(" 7D ")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseExpiry("")
	require.NoError(t, err)
	assert.Equal(t, DefaultExpiry, d)

	_, err = ParseExpiry("90m")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("BUY")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)
	_, err = ParseSide("short")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}
