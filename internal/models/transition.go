package models

import "time"

// TransitionEvent is one execution phase change as it is cached, published
// and archived.
type TransitionEvent struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`

	InputMint          string `json:"input_mint,omitempty"`
	OutputMint         string `json:"output_mint,omitempty"`
	AmountAtomic       uint64 `json:"amount_atomic,omitempty"`
	QuoteRequestedAtMs int64  `json:"quote_requested_at_ms,omitempty"`

	Signature     string `json:"signature,omitempty"`
	Status        string `json:"status,omitempty"`
	ExecutionTime string `json:"execution_time,omitempty"`
	ErrorPreview  string `json:"error_preview,omitempty"`
}

// Terminal reports whether the event closed an attempt.
func (e *TransitionEvent) Terminal() bool {
	return e.To == "success" || e.To == "failed"
}

// ExecutionRecord is a finished attempt, kept in the recent-executions list.
type ExecutionRecord struct {
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	Outcome       string    `json:"outcome"` // success | failed
	InputMint     string    `json:"input_mint,omitempty"`
	OutputMint    string    `json:"output_mint,omitempty"`
	AmountAtomic  uint64    `json:"amount_atomic,omitempty"`
	Signature     string    `json:"signature,omitempty"`
	Status        string    `json:"status,omitempty"`
	ExecutionTime string    `json:"execution_time,omitempty"`
	ErrorPreview  string    `json:"error_preview,omitempty"`
}
