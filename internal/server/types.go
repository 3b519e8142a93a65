package server

import (
	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Sessions int    `json:"sessions"`
	Cache    string `json:"cache,omitempty"` // "ok" or "down"; empty when no cache is wired
}

// SessionResponse carries a session's id and current state
type SessionResponse struct {
	ID       string             `json:"id"`
	Snapshot execution.Snapshot `json:"snapshot"`
}

// ExecutionResponse is returned by submit and instant execution
type ExecutionResponse struct {
	Outcome  execution.Outcome  `json:"outcome"`
	Snapshot execution.Snapshot `json:"snapshot"`
}

// TriggerResponse is the prepared order and, once placed, the venue's ack
type TriggerResponse struct {
	Order trigger.Params `json:"order"`
	Ack   *trigger.Ack   `json:"ack,omitempty"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}
