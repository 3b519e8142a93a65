package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
)

// ExecutionCache is the hot store: recent outcomes plus live fan-out of
// phase transitions.
type ExecutionCache interface {
	// AddRecentExecution pushes a finished attempt onto the capped recent list
	AddRecentExecution(ctx context.Context, rec *models.ExecutionRecord) error

	// GetRecentExecutions returns the newest records first
	GetRecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionRecord, error)

	// PublishTransition fans a transition out to the Pub/Sub channels
	PublishTransition(ctx context.Context, ev *models.TransitionEvent) error

	// SubscribeTransitions streams transitions from a channel or pattern
	SubscribeTransitions(ctx context.Context, channel string) (<-chan *models.TransitionEvent, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// TransitionStore is the append-only audit archive.
type TransitionStore interface {
	InsertTransition(ctx context.Context, ev *models.TransitionEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// TransitionHandler processes one transition event
type TransitionHandler func(*models.TransitionEvent)
