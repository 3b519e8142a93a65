package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDecimalsUnavailable = errors.New("token decimals unavailable")
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToAtomic converts a human-readable amount into base units:
// max(1, floor(amountUI * 10^decimals)).
//
// The product is computed on the shortest decimal rendering of amountUI, so
// 0.29 with 2 decimals yields 29 rather than the 28 a float multiply gives.
func ToAtomic(amountUI float64, decimals uint8) (uint64, error) {
	if math.IsNaN(amountUI) || math.IsInf(amountUI, 0) || amountUI <= 0 {
		return 0, fmt.Errorf("%w: %v must be a finite number > 0", ErrInvalidAmount, amountUI)
	}
	mul := math.Pow10(int(decimals))
	if math.IsInf(mul, 0) || mul <= 0 {
		return 0, fmt.Errorf("%w: multiplier 10^%d is not finite", ErrInvalidAmount, decimals)
	}

	atomic := decimal.NewFromFloat(amountUI).Shift(int32(decimals)).Floor()
	if atomic.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("%w: %v with %d decimals overflows uint64", ErrInvalidAmount, amountUI, decimals)
	}
	if atomic.Sign() <= 0 {
		return 1, nil
	}
	return atomic.BigInt().Uint64(), nil
}

// ToUI converts base units back to a human-readable amount. Unknown inputs
// stay unknown: a nil amount or nil decimals yields nil.
func ToUI(amountAtomic *uint64, decimals *uint8) *float64 {
	if amountAtomic == nil || decimals == nil {
		return nil
	}
	v, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(*amountAtomic), 0).
		Shift(-int32(*decimals)).
		Float64()
	return &v
}
