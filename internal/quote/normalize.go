package quote

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/shopspring/decimal"
)

// Alias tables, highest priority first. Dotted names address nested objects.
var (
	aliasAmountIn     = []string{"amount_in", "inAmount", "amountIn"}
	aliasAmountInMax  = []string{"amount_in_max", "maxInAmount", "amountInMax"}
	aliasOutAmount    = []string{"amount_out", "outAmount", "amountOut"}
	aliasMinOutAmount = []string{"min_amount_out", "minOutAmount", "otherAmountThreshold", "amountOutMin"}
	aliasPriceImpact  = []string{"price_impact", "priceImpactPct", "priceImpact"}
	aliasFeeAmountSol = []string{"fee_amount_sol", "feeAmountSol", "feeSol"}
	aliasFeeRateBps   = []string{"fee_rate_bps", "feeBps", "feeRateBps", "platformFee.feeBps"}
	aliasRoute        = []string{"route_plan", "routePlan", "route"}
)

var (
	hundred   = decimal.NewFromInt(100)
	one       = decimal.NewFromInt(1)
	maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// Normalize extracts the canonical summary from a venue payload. UI amounts
// are derived only when outputDecimals is known.
func Normalize(raw Raw, outputDecimals *uint8) Summary {
	var s Summary
	if raw == nil {
		return s
	}

	s.AmountInAtomic = atomicField(raw, aliasAmountIn)
	s.AmountInMaxAtomic = atomicField(raw, aliasAmountInMax)
	s.OutAmountAtomic = atomicField(raw, aliasOutAmount)
	s.MinOutAmountAtomic = atomicField(raw, aliasMinOutAmount)

	if d, ok := firstNumber(raw, aliasPriceImpact); ok {
		v := NormalizePriceImpact(d)
		s.PriceImpactPercent = &v
	}
	s.FeeAmountSol = floatField(raw, aliasFeeAmountSol)
	s.FeeRateBps = floatField(raw, aliasFeeRateBps)
	s.RouteHopCount = listLen(raw, aliasRoute)

	s.AmountOutUI = units.ToUI(s.OutAmountAtomic, outputDecimals)
	s.MinOutAmountUI = units.ToUI(s.MinOutAmountAtomic, outputDecimals)
	return s
}

// NormalizePriceImpact reads |v| <= 1 as a fraction and anything larger as
// already being a percentage. 1 therefore means 100%.
func NormalizePriceImpact(v decimal.Decimal) float64 {
	if v.Abs().LessThanOrEqual(one) {
		v = v.Mul(hundred)
	}
	f, _ := v.Float64()
	return f
}

func firstNumber(raw Raw, aliases []string) (decimal.Decimal, bool) {
	for _, alias := range aliases {
		v, ok := valueAt(raw, alias)
		if !ok {
			continue
		}
		if d, ok := parseNumber(v); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func atomicField(raw Raw, aliases []string) *uint64 {
	d, ok := firstNumber(raw, aliases)
	if !ok || !d.IsInteger() || d.Sign() < 0 || d.GreaterThan(maxUint64) {
		return nil
	}
	v := d.BigInt().Uint64()
	return &v
}

func floatField(raw Raw, aliases []string) *float64 {
	d, ok := firstNumber(raw, aliases)
	if !ok {
		return nil
	}
	v, _ := d.Float64()
	return &v
}

func listLen(raw Raw, aliases []string) *int {
	for _, alias := range aliases {
		v, ok := valueAt(raw, alias)
		if !ok {
			continue
		}
		if list, ok := v.([]any); ok {
			n := len(list)
			return &n
		}
	}
	return nil
}

func valueAt(raw Raw, path string) (any, bool) {
	var cur any = map[string]any(raw)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func parseNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), true
	default:
		return decimal.Decimal{}, false
	}
}
