package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
)

// ErrRejected is returned when a swap breaks a risk limit. Nothing is sent
// to the venue.
var ErrRejected = errors.New("rejected by risk limits")

// Config defines risk management parameters. Zero disables a limit.
type Config struct {
	// Per-transaction limit, in SOL, for swaps with a SOL leg
	MaxSwapAmountSOL float64

	// Rolling 24h limit, in SOL
	DailyLimitSOL float64

	// Price impact cap in bps (500 = 5%)
	MaxPriceImpactBps uint16

	// Slippage cap in bps
	MaxSlippageBps uint16

	// Token whitelist by symbol (empty = allow all)
	AllowedTokens []string

	// Min SOL balance to keep for fees; needs a BalanceSource
	MinBalanceSOL float64
}

// DefaultConfig returns conservative risk settings
func DefaultConfig() Config {
	return Config{
		MaxSwapAmountSOL:  1.0,
		DailyLimitSOL:     10.0,
		MaxPriceImpactBps: 500,
		MaxSlippageBps:    1000,
		MinBalanceSOL:     0.05,
	}
}

// BalanceSource returns a wallet's lamport balance.
type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// CheckResult explains a risk decision.
type CheckResult struct {
	Allowed           bool    `json:"allowed"`
	Reason            string  `json:"reason,omitempty"`
	SwapValueSOL      float64 `json:"swapValueSol"`
	DailyUsedSOL      float64 `json:"dailyUsedSol"`
	DailyRemainingSOL float64 `json:"dailyRemainingSol"`
}

// Status reports the configured limits and current usage.
type Status struct {
	MaxSwapAmountSOL  float64  `json:"maxSwapAmountSol"`
	DailyLimitSOL     float64  `json:"dailyLimitSol"`
	DailyUsedSOL      float64  `json:"dailyUsedSol"`
	DailyReservedSOL  float64  `json:"dailyReservedSol"`
	DailyRemainingSOL float64  `json:"dailyRemainingSol"`
	MaxPriceImpactBps uint16   `json:"maxPriceImpactBps"`
	MaxSlippageBps    uint16   `json:"maxSlippageBps"`
	AllowedTokens     []string `json:"allowedTokens,omitempty"`
}

// Manager enforces risk limits on quotes about to be submitted.
type Manager struct {
	config  Config
	tokens  *units.Registry
	balance BalanceSource
	tracker *DailyLimitTracker
}

// NewManager creates a risk manager. balance may be nil, which skips the
// minimum-balance rule.
func NewManager(config Config, tokens *units.Registry, balance BalanceSource) *Manager {
	if tokens == nil {
		tokens = units.NewRegistry()
	}
	return &Manager{
		config:  config,
		tokens:  tokens,
		balance: balance,
		tracker: NewDailyLimitTracker(time.Now),
	}
}

// Check implements the execution guard: nil, or an error wrapping ErrRejected.
// A passing swap with a SOL value is reserved against the daily limit until
// Record or Release settles it, so concurrent sessions cannot overrun it.
func (m *Manager) Check(ctx context.Context, q quote.Result) error {
	res, err := m.Evaluate(ctx, q)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return fmt.Errorf("%w: %s", ErrRejected, res.Reason)
	}
	value, known := m.swapValueSOL(q)
	if !known {
		return nil
	}
	if used, ok := m.tracker.Reserve(value, m.config.DailyLimitSOL); !ok {
		return fmt.Errorf("%w: daily limit exceeded: used %.4f + %.4f > %.4f SOL",
			ErrRejected, used, value, m.config.DailyLimitSOL)
	}
	return nil
}

// Evaluate validates a quote against all risk rules
func (m *Manager) Evaluate(ctx context.Context, q quote.Result) (*CheckResult, error) {
	result := &CheckResult{Allowed: true}
	value, known := m.swapValueSOL(q)
	result.SwapValueSOL = value

	reject := func(format string, args ...any) (*CheckResult, error) {
		result.Allowed = false
		result.Reason = fmt.Sprintf(format, args...)
		return result, nil
	}

	// 1. Per-transaction limit
	if known && m.config.MaxSwapAmountSOL > 0 && value > m.config.MaxSwapAmountSOL {
		return reject("swap value %.4f SOL exceeds max %.4f SOL per transaction",
			value, m.config.MaxSwapAmountSOL)
	}

	// 2. Daily limit, counting swaps still in flight
	used := m.tracker.DailyUsage() + m.tracker.Reserved()
	result.DailyUsedSOL = used
	if m.config.DailyLimitSOL > 0 {
		result.DailyRemainingSOL = m.config.DailyLimitSOL - used
		if known && used+value > m.config.DailyLimitSOL {
			return reject("daily limit exceeded: used %.4f + %.4f > %.4f SOL",
				used, value, m.config.DailyLimitSOL)
		}
	}

	// 3. Token whitelist
	if len(m.config.AllowedTokens) > 0 {
		in, out := m.tokens.Symbol(q.InputMint), m.tokens.Symbol(q.OutputMint)
		if !m.isTokenAllowed(in) || !m.isTokenAllowed(out) {
			return reject("token not whitelisted: %s or %s", in, out)
		}
	}

	// 4. Price impact
	if pi := q.Summary.PriceImpactPercent; pi != nil && m.config.MaxPriceImpactBps > 0 {
		if *pi*100 > float64(m.config.MaxPriceImpactBps) {
			return reject("price impact %.2f%% exceeds max %.2f%%",
				*pi, float64(m.config.MaxPriceImpactBps)/100)
		}
	}

	// 5. Slippage
	if m.config.MaxSlippageBps > 0 && q.SlippageBps > m.config.MaxSlippageBps {
		return reject("slippage %d bps exceeds max %d bps", q.SlippageBps, m.config.MaxSlippageBps)
	}

	// 6. Minimum balance left for fees
	if m.balance != nil && m.config.MinBalanceSOL > 0 && q.WalletAddress != "" {
		lamports, err := m.balance.GetBalance(ctx, q.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("risk check: fetch balance: %w", err)
		}
		balance := lamportsToSOL(lamports)
		spend := 0.0
		if q.InputMint == units.MintSOL {
			spend = value
		}
		if balance-spend < m.config.MinBalanceSOL {
			return reject("insufficient balance: would leave %.4f SOL, need %.4f SOL minimum",
				balance-spend, m.config.MinBalanceSOL)
		}
	}

	return result, nil
}

// Record counts a successful swap against the daily limit, settling the
// reservation Check made for it.
func (m *Manager) Record(q quote.Result) {
	if value, known := m.swapValueSOL(q); known {
		m.tracker.Release(value)
		m.tracker.RecordSwap(value)
	}
}

// Release drops the reservation for a swap that was never executed.
func (m *Manager) Release(q quote.Result) {
	if value, known := m.swapValueSOL(q); known {
		m.tracker.Release(value)
	}
}

// Status returns current risk limits and usage
func (m *Manager) Status() Status {
	used := m.tracker.DailyUsage()
	reserved := m.tracker.Reserved()
	return Status{
		MaxSwapAmountSOL:  m.config.MaxSwapAmountSOL,
		DailyLimitSOL:     m.config.DailyLimitSOL,
		DailyUsedSOL:      used,
		DailyReservedSOL:  reserved,
		DailyRemainingSOL: m.config.DailyLimitSOL - used - reserved,
		MaxPriceImpactBps: m.config.MaxPriceImpactBps,
		MaxSlippageBps:    m.config.MaxSlippageBps,
		AllowedTokens:     m.config.AllowedTokens,
	}
}

// swapValueSOL prices the swap in SOL from whichever leg is SOL. Pairs with no
// SOL leg have no known value and skip the amount limits.
func (m *Manager) swapValueSOL(q quote.Result) (float64, bool) {
	switch {
	case q.InputMint == units.MintSOL:
		return lamportsToSOL(q.AmountAtomic), true
	case q.OutputMint == units.MintSOL && q.Summary.OutAmountAtomic != nil:
		return lamportsToSOL(*q.Summary.OutAmountAtomic), true
	default:
		return 0, false
	}
}

func (m *Manager) isTokenAllowed(symbol string) bool {
	for _, allowed := range m.config.AllowedTokens {
		if allowed == symbol {
			return true
		}
	}
	return false
}

func lamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / 1e9
}

// DailyLimitTracker tracks rolling 24-hour usage plus swaps reserved but
// not yet settled
type DailyLimitTracker struct {
	mu       sync.Mutex
	now      func() time.Time
	swaps    []swapRecord
	reserved float64
}

type swapRecord struct {
	timestamp time.Time
	amountSOL float64
}

func NewDailyLimitTracker(now func() time.Time) *DailyLimitTracker {
	if now == nil {
		now = time.Now
	}
	return &DailyLimitTracker{now: now}
}

// Reserve holds amountSOL against limitSOL if recorded plus reserved usage
// leaves room for it. A limit <= 0 always reserves. It returns the usage the
// decision was made on.
func (t *DailyLimitTracker) Reserve(amountSOL, limitSOL float64) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()

	used := t.reserved
	for _, s := range t.swaps {
		used += s.amountSOL
	}
	if limitSOL > 0 && used+amountSOL > limitSOL {
		return used, false
	}
	t.reserved += amountSOL
	return used, true
}

// Release returns a reservation
func (t *DailyLimitTracker) Release(amountSOL float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved -= amountSOL
	if t.reserved < 1e-12 {
		t.reserved = 0
	}
}

// Reserved is the total currently held for swaps in flight
func (t *DailyLimitTracker) Reserved() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reserved
}

// RecordSwap adds a swap to the tracker
func (t *DailyLimitTracker) RecordSwap(amountSOL float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swaps = append(t.swaps, swapRecord{timestamp: t.now(), amountSOL: amountSOL})
	t.cleanupLocked()
}

// DailyUsage is the total recorded in the last 24 hours
func (t *DailyLimitTracker) DailyUsage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()

	total := 0.0
	for _, s := range t.swaps {
		total += s.amountSOL
	}
	return total
}

func (t *DailyLimitTracker) cleanupLocked() {
	cutoff := t.now().Add(-24 * time.Hour)
	kept := t.swaps[:0]
	for _, s := range t.swaps {
		if s.timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	t.swaps = kept
}
