package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/sequence"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/staleness"
	"github.com/sirupsen/logrus"
)

const maxPreviewRunes = 160

// Config holds the collaborators of a Machine.
type Config struct {
	ID       string
	Quoter   Quoter
	Executor Executor
	Guard    Guard // optional
	Policy   staleness.Policy
	Now      func() time.Time
	Logger   *logrus.Logger
}

// state keeps the phase together with the only data that phase may carry.
// It is replaced as a whole on every transition.
type state struct {
	phase   Phase
	quote   quote.Result // valid while phase.HoldsQuote()
	outcome Outcome      // valid while phase.Terminal()
	expired bool         // idle because the held quote expired
}

// Machine drives one trade attempt through
// idle -> quoting -> quoted -> confirming -> submitting -> success|failed.
//
// A Machine belongs to a single owner (one screen or API session). The lock is
// never held across the quote or execute RPC.
type Machine struct {
	id       string
	quoter   Quoter
	executor Executor
	guard    Guard
	policy   staleness.Policy
	now      func() time.Time
	logger   *logrus.Logger

	mu        sync.Mutex
	st        state
	seq       sequence.Counter
	auditSeq  uint64
	observers []func(Transition)
}

// NewMachine creates a machine in the idle phase.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Quoter == nil {
		return nil, fmt.Errorf("execution machine: quoter is nil")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("execution machine: executor is nil")
	}
	if cfg.Policy.TTL <= 0 {
		cfg.Policy = staleness.New(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Machine{
		id:       cfg.ID,
		quoter:   cfg.Quoter,
		executor: cfg.Executor,
		guard:    cfg.Guard,
		policy:   cfg.Policy,
		now:      cfg.Now,
		logger:   cfg.Logger,
		st:       state{phase: PhaseIdle},
	}, nil
}

// ID returns the machine identifier given at construction.
func (m *Machine) ID() string { return m.id }

// OnTransition registers an observer. Observers run synchronously under the
// machine lock, in transition order, and must not call back into the machine.
func (m *Machine) OnTransition(fn func(Transition)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.phase
}

// Snapshot returns the phase and the data needed to render it.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.now())
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{ID: m.id, Phase: m.st.phase, Expired: m.st.expired}
	if m.st.phase.HoldsQuote() {
		q := m.st.quote
		s.Quote = &q
		left := m.policy.SecondsRemaining(q.RequestedAtMs, now.UnixMilli())
		s.SecondsRemaining = &left
	}
	if m.st.phase.Terminal() {
		o := m.st.outcome
		s.Outcome = &o
	}
	return s
}

// RequestQuote asks for a fresh quote. It is allowed from idle, quoting and
// quoted; a newer request supersedes any in flight, and a superseded
// completion returns sequence.ErrSuperseded without touching state.
// Validation errors leave the phase unchanged.
func (m *Machine) RequestQuote(ctx context.Context, req quote.Request) (quote.Result, error) {
	m.mu.Lock()
	switch m.st.phase {
	case PhaseIdle, PhaseQuoting, PhaseQuoted:
	default:
		p := m.st.phase
		m.mu.Unlock()
		return quote.Result{}, invalid("request a quote", p)
	}
	if err := m.quoter.Validate(req); err != nil {
		m.mu.Unlock()
		return quote.Result{}, err
	}
	ticket := m.seq.Next()
	m.enterLocked(state{phase: PhaseQuoting}, "quote requested")
	m.mu.Unlock()

	res, err := sequence.Guard(ctx, &m.seq, ticket, &m.mu, m.fetch(req),
		func(res quote.Result, err error) (quote.Result, error) {
			if err != nil {
				m.enterLocked(state{phase: PhaseFailed, outcome: Outcome{Status: "quote_failed", ErrorPreview: preview(err)}}, "quote failed")
				return quote.Result{}, err
			}
			m.enterLocked(state{phase: PhaseQuoted, quote: res}, "quote received")
			return res, nil
		})
	if errors.Is(err, sequence.ErrSuperseded) {
		m.logger.WithField("machine", m.id).Debug("discarding superseded quote result")
	}
	return res, err
}

// Tick evaluates staleness at now and drops an expired quote, returning the
// machine to idle. It reports whether an expiry happened.
func (m *Machine) Tick(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.st.phase {
	case PhaseQuoted, PhaseConfirming:
		if m.policy.IsStale(m.st.quote.RequestedAtMs, now.UnixMilli()) {
			m.enterLocked(state{phase: PhaseIdle, expired: true}, "quote expired")
			return true
		}
	}
	return false
}

// Confirm moves quoted -> confirming. An expired quote is rejected with
// ErrStaleQuote and the phase stays quoted until the next Tick expires it.
// Once a Tick has expired it, Confirm still answers ErrStaleQuote.
func (m *Machine) Confirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.expired {
		return errExpired()
	}
	if m.st.phase != PhaseQuoted {
		return invalid("confirm", m.st.phase)
	}
	if m.policy.IsStale(m.st.quote.RequestedAtMs, m.now().UnixMilli()) {
		return errExpired()
	}
	m.enterLocked(state{phase: PhaseConfirming, quote: m.st.quote}, "user confirmed")
	return nil
}

// CancelConfirm moves confirming back to quoted.
func (m *Machine) CancelConfirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.phase != PhaseConfirming {
		return invalid("cancel confirmation", m.st.phase)
	}
	m.enterLocked(state{phase: PhaseQuoted, quote: m.st.quote}, "confirmation cancelled")
	return nil
}

// Submit sends the confirmed quote to the execution venue and waits for the
// terminal outcome. A quote that expired while confirming is discarded and
// ErrStaleQuote returned before any network call.
func (m *Machine) Submit(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	if m.st.expired {
		m.mu.Unlock()
		return Outcome{}, errExpired()
	}
	if m.st.phase != PhaseConfirming {
		p := m.st.phase
		m.mu.Unlock()
		return Outcome{}, invalid("submit", p)
	}
	q := m.st.quote
	if m.policy.IsStale(q.RequestedAtMs, m.now().UnixMilli()) {
		m.enterLocked(state{phase: PhaseIdle, expired: true}, "quote expired before submit")
		m.mu.Unlock()
		return Outcome{}, errExpired()
	}
	ticket := m.seq.Next()
	m.enterLocked(state{phase: PhaseSubmitting, quote: q}, "submitted")
	m.mu.Unlock()

	return m.execute(ctx, ticket, q, false)
}

// ExecuteInstant quotes and submits in one step, without a confirmation
// phase: idle -> quoting -> submitting -> success|failed. The quote is still
// checked for staleness before it is submitted.
func (m *Machine) ExecuteInstant(ctx context.Context, req quote.Request) (Outcome, error) {
	m.mu.Lock()
	if m.st.phase != PhaseIdle && m.st.phase != PhaseQuoted {
		p := m.st.phase
		m.mu.Unlock()
		return Outcome{}, invalid("execute instantly", p)
	}
	if err := m.quoter.Validate(req); err != nil {
		m.mu.Unlock()
		return Outcome{}, err
	}
	ticket := m.seq.Next()
	m.enterLocked(state{phase: PhaseQuoting}, "instant quote requested")
	m.mu.Unlock()

	var q quote.Result
	o, err := sequence.Guard(ctx, &m.seq, ticket, &m.mu, m.fetch(req),
		func(res quote.Result, err error) (Outcome, error) {
			if err != nil {
				o := Outcome{Status: "quote_failed", ErrorPreview: preview(err)}
				m.enterLocked(state{phase: PhaseFailed, outcome: o}, "quote failed")
				return o, err
			}
			if m.policy.IsStale(res.RequestedAtMs, m.now().UnixMilli()) {
				err := errExpired()
				o := Outcome{Status: "expired", ErrorPreview: preview(err)}
				m.enterLocked(state{phase: PhaseFailed, outcome: o}, "quote expired before submit")
				return o, err
			}
			q = res
			m.enterLocked(state{phase: PhaseSubmitting, quote: q}, "instant submit")
			return Outcome{}, nil
		})
	if err != nil {
		return o, err
	}
	return m.execute(ctx, ticket, q, true)
}

func (m *Machine) fetch(req quote.Request) func(context.Context) (quote.Result, error) {
	return func(ctx context.Context) (quote.Result, error) {
		return m.quoter.RequestQuote(ctx, req)
	}
}

func (m *Machine) execute(ctx context.Context, ticket sequence.Ticket, q quote.Result, instant bool) (Outcome, error) {
	if m.guard != nil {
		if err := m.guard.Check(ctx, q); err != nil {
			o := Outcome{Status: "rejected", ErrorPreview: preview(err)}
			return m.finish(ticket, state{phase: PhaseFailed, outcome: o}, "rejected before submit", err)
		}
	}

	// The guard may have spent time on the network; this is the last look
	// before the quote leaves the process.
	if m.policy.IsStale(q.RequestedAtMs, m.now().UnixMilli()) {
		m.release(q)
		err := errExpired()
		if instant {
			o := Outcome{Status: "expired", ErrorPreview: preview(err)}
			return m.finish(ticket, state{phase: PhaseFailed, outcome: o}, "quote expired before submit", err)
		}
		return m.finish(ticket, state{phase: PhaseIdle, expired: true}, "quote expired before submit", err)
	}

	resp, err := m.executor.Execute(ctx, ExecuteRequest{
		WalletAddress: q.WalletAddress,
		InputMint:     q.InputMint,
		OutputMint:    q.OutputMint,
		AmountAtomic:  q.AmountAtomic,
		SlippageBps:   q.SlippageBps,
	})

	switch {
	case err != nil:
		m.release(q)
		err = fmt.Errorf("%w: %w", ErrExecutionFault, err)
		o := Outcome{Status: resp.Status, ErrorPreview: preview(err)}
		return m.finish(ticket, state{phase: PhaseFailed, outcome: o}, "execution failed", err)
	case resp.Signature == "":
		m.release(q)
		err = fmt.Errorf("%w: venue returned no signature", ErrExecutionFault)
		o := Outcome{Status: resp.Status, ExecutionTime: resp.ExecutionTime, ErrorPreview: preview(err)}
		return m.finish(ticket, state{phase: PhaseFailed, outcome: o}, "execution returned no signature", err)
	}

	if m.guard != nil {
		m.guard.Record(q)
	}
	o := Outcome{Signature: resp.Signature, Status: resp.Status, ExecutionTime: resp.ExecutionTime}
	return m.finish(ticket, state{phase: PhaseSuccess, outcome: o}, "execution confirmed", nil)
}

func (m *Machine) release(q quote.Result) {
	if m.guard != nil {
		m.guard.Release(q)
	}
}

// finish applies a terminal state unless the machine was torn down while the
// attempt was in flight.
func (m *Machine) finish(ticket sequence.Ticket, next state, reason string, err error) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seq.IsCurrent(ticket) {
		m.logger.WithFields(logrus.Fields{
			"machine":   m.id,
			"signature": next.outcome.Signature,
		}).Warn("execution finished after teardown; outcome not applied")
		return next.outcome, sequence.ErrSuperseded
	}
	m.enterLocked(next, reason)
	return next.outcome, err
}

// Reset clears a terminal outcome and returns to idle.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.st.phase == PhaseIdle:
		m.st.expired = false
		return nil
	case m.st.phase.Terminal():
		m.enterLocked(state{phase: PhaseIdle}, "reset")
		return nil
	default:
		return invalid("reset", m.st.phase)
	}
}

// Close is called when the owner goes away. It returns the machine to idle
// from any phase and makes every in-flight request's result irrelevant.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.Invalidate()
	if m.st.phase != PhaseIdle {
		m.enterLocked(state{phase: PhaseIdle}, "teardown")
	}
	m.st.expired = false
}

// Watch re-evaluates staleness every interval until ctx is done.
func (m *Machine) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(m.now())
		}
	}
}

func (m *Machine) enterLocked(next state, reason string) {
	prev := m.st
	from := prev.phase
	m.st = next
	m.auditSeq++

	t := Transition{
		MachineID: m.id,
		Seq:       m.auditSeq,
		From:      from,
		To:        next.phase,
		Reason:    reason,
		At:        m.now(),
	}
	// Terminal transitions report the quote that was just submitted.
	held, ok := next.quote, next.phase.HoldsQuote()
	if !ok && next.phase.Terminal() && prev.phase.HoldsQuote() {
		held, ok = prev.quote, true
	}
	if ok {
		t.QuoteRequestedAtMs = held.RequestedAtMs
		t.InputMint = held.InputMint
		t.OutputMint = held.OutputMint
		t.AmountAtomic = held.AmountAtomic
	}
	if next.phase.Terminal() {
		o := next.outcome
		t.Outcome = &o
	}

	m.logger.WithFields(logrus.Fields{
		"machine": m.id,
		"from":    from,
		"to":      next.phase,
		"reason":  reason,
	}).Info("phase transition")

	for _, fn := range m.observers {
		fn(t)
	}
}

func errExpired() error {
	return fmt.Errorf("%w: get a new quote", ErrStaleQuote)
}

func invalid(action string, p Phase) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, p)
}

// preview shortens an error for display.
func preview(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if utf8.RuneCountInString(s) <= maxPreviewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxPreviewRunes-1]) + "…"
}

// IsRejection reports whether err was raised locally without reaching the
// venue.
func IsRejection(err error) bool {
	return errors.Is(err, ErrStaleQuote) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, sequence.ErrSuperseded)
}
