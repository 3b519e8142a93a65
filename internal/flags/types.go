package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gates the engine consults before acting.
const (
	// KeySubmit is the global kill switch for sending swaps to the venue.
	KeySubmit = "execution.submit"
	// KeyInstant allows quote-and-submit without a confirmation step.
	KeyInstant = "execution.instant"
	// KeyTriggerOrders allows placing conditional orders.
	KeyTriggerOrders = "orders.trigger"
)

// Defaults apply when a gate was never set.
var Defaults = map[string]bool{
	KeySubmit:        true,
	KeyInstant:       false,
	KeyTriggerOrders: true,
}
