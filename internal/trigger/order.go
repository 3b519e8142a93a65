package trigger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTriggerUnresolvable is returned when no usable trigger price can be
// derived, e.g. the token supply is zero or unknown.
var ErrTriggerUnresolvable = errors.New("trigger price unresolvable")

// ErrInvalidOrder covers malformed intents: unknown side, bad market caps,
// unsupported expiry.
var ErrInvalidOrder = errors.New("invalid trigger order")

// ErrPlacementFault means the order venue failed or refused the order.
var ErrPlacementFault = errors.New("trigger placement fault")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidOrder, s)
	}
}

// OrderType classifies a conditional order. Entry orders buy, exit orders
// sell; limit orders fire on a favourable move, stop orders on an adverse or
// breakout move.
type OrderType string

const (
	EntryLimit OrderType = "entry_limit"
	EntryStop  OrderType = "entry_stop"
	ExitLimit  OrderType = "exit_limit"
	ExitStop   OrderType = "exit_stop"
)

// DetectOrderType compares the target market cap to the live one.
//
//	buy,  target <  current -> entry_limit (buy the dip)
//	buy,  target >= current -> entry_stop  (buy the breakout)
//	sell, target >  current -> exit_limit  (take profit)
//	sell, target <= current -> exit_stop   (stop loss)
func DetectOrderType(side Side, targetMcapUSD, currentMcapUSD float64) (OrderType, error) {
	if !positive(targetMcapUSD) {
		return "", fmt.Errorf("%w: target market cap must be a finite number > 0", ErrInvalidOrder)
	}
	if !positive(currentMcapUSD) {
		return "", fmt.Errorf("%w: current market cap must be a finite number > 0", ErrInvalidOrder)
	}

	switch side {
	case SideBuy:
		if targetMcapUSD < currentMcapUSD {
			return EntryLimit, nil
		}
		return EntryStop, nil
	case SideSell:
		if targetMcapUSD > currentMcapUSD {
			return ExitLimit, nil
		}
		return ExitStop, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
	}
}

// CalcTriggerPrice is the per-token USD price at which the token's market cap
// equals targetMcapUSD.
func CalcTriggerPrice(targetMcapUSD, supply float64) (float64, error) {
	if !positive(supply) {
		return 0, fmt.Errorf("%w: token supply must be > 0", ErrTriggerUnresolvable)
	}
	if !positive(targetMcapUSD) {
		return 0, fmt.Errorf("%w: target market cap must be > 0", ErrTriggerUnresolvable)
	}
	price, _ := decimal.NewFromFloat(targetMcapUSD).
		DivRound(decimal.NewFromFloat(supply), 18).
		Float64()
	if !positive(price) {
		return 0, fmt.Errorf("%w: price underflows", ErrTriggerUnresolvable)
	}
	return price, nil
}

// Expiry presets. Orders only ever carry one of these durations.
const (
	Expiry1h  = time.Hour
	Expiry24h = 24 * time.Hour
	Expiry7d  = 7 * 24 * time.Hour

	DefaultExpiry = Expiry24h
)

var expiryPresets = map[string]time.Duration{
	"1h":  Expiry1h,
	"24h": Expiry24h,
	"1d":  Expiry24h,
	"7d":  Expiry7d,
}

// ExpiryPresets lists the accepted labels in ascending order.
func ExpiryPresets() []string { return []string{"1h", "24h", "7d"} }

// ParseExpiry maps a preset label to its duration. An empty label selects
// DefaultExpiry.
func ParseExpiry(label string) (time.Duration, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return DefaultExpiry, nil
	}
	d, ok := expiryPresets[label]
	if !ok {
		return 0, fmt.Errorf("%w: expiry must be one of %s, got %q",
			ErrInvalidOrder, strings.Join(ExpiryPresets(), ", "), label)
	}
	return d, nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
