package execution

import (
	"context"
	"errors"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
)

var (
	// ErrStaleQuote rejects a confirm or submit on an expired quote. It is
	// raised locally; nothing is sent to the venue.
	ErrStaleQuote = errors.New("quote expired")
	// ErrExecutionFault means the execution RPC failed or returned no signature.
	ErrExecutionFault = errors.New("execution fault")
	// ErrInvalidTransition is returned for actions the current phase does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Phase is the single source of truth for where a trade attempt is.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseQuoting    Phase = "quoting"
	PhaseQuoted     Phase = "quoted"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether only Reset can leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseFailed
}

// HoldsQuote reports whether the phase carries a current quote.
func (p Phase) HoldsQuote() bool {
	return p == PhaseQuoted || p == PhaseConfirming || p == PhaseSubmitting
}

// Outcome is the terminal result of an attempt.
type Outcome struct {
	Signature     string `json:"signature,omitempty"`
	Status        string `json:"status,omitempty"`
	ExecutionTime string `json:"executionTime,omitempty"`
	ErrorPreview  string `json:"errorPreview,omitempty"`
}

// ExecuteRequest is what the execution venue is asked to fill.
type ExecuteRequest struct {
	WalletAddress string `json:"walletAddress"`
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	AmountAtomic  uint64 `json:"amount,string"`
	SlippageBps   uint16 `json:"slippageBps"`
}

// ExecuteResponse is the execution venue's answer. A missing signature means
// the swap did not land.
type ExecuteResponse struct {
	Signature     string `json:"signature,omitempty"`
	Status        string `json:"status,omitempty"`
	ExecutionTime string `json:"executionTime,omitempty"`
}

// Executor is the execution RPC.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
}

// Guard vets a quote right before it is sent to the venue. A rejection fails
// the attempt without calling the venue. A passing Check holds a reservation
// for q that is settled by exactly one of Record (the swap landed) or Release
// (it did not).
type Guard interface {
	Check(ctx context.Context, q quote.Result) error
	Record(q quote.Result)
	Release(q quote.Result)
}

// Quoter prices requests. *quote.Service implements it.
type Quoter interface {
	Validate(req quote.Request) error
	RequestQuote(ctx context.Context, req quote.Request) (quote.Result, error)
}

// Snapshot is a consistent view of the machine. Quote is set only in phases
// that hold one, Outcome only in terminal phases. Expired is set while the
// machine sits idle because its last quote expired.
type Snapshot struct {
	ID               string        `json:"id,omitempty"`
	Phase            Phase         `json:"phase"`
	Quote            *quote.Result `json:"quote,omitempty"`
	Outcome          *Outcome      `json:"outcome,omitempty"`
	SecondsRemaining *int64        `json:"secondsRemaining,omitempty"`
	Expired          bool          `json:"expired,omitempty"`
}

// Transition is one audited phase change.
type Transition struct {
	MachineID string    `json:"machineId"`
	Seq       uint64    `json:"seq"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`

	QuoteRequestedAtMs int64    `json:"quoteRequestedAtMs,omitempty"`
	InputMint          string   `json:"inputMint,omitempty"`
	OutputMint         string   `json:"outputMint,omitempty"`
	AmountAtomic       uint64   `json:"amountAtomic,omitempty"`
	Outcome            *Outcome `json:"outcome,omitempty"`
}
