package constants

import "time"

// Redis keys
const (
	RedisKeyRecentExecutions = "executions:recent"
)

// Redis Pub/Sub channels
const (
	PubSubChannelTransitions = "transitions:all"
	PubSubChannelSession     = "transitions:session:" // + session id
	PubSubChannelOutcomes    = "transitions:outcomes"
)

// ClickHouse
const (
	TransitionsTable = "execution_transitions"
)

// Limits
const (
	MaxRecentExecutions = 100
	RecorderBuffer      = 1024
)

// Timeouts for best-effort side effects of a transition
const (
	RecordTimeout = 5 * time.Second
)
