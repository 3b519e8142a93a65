package sequence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSuperseded is returned when a newer request was issued for the same
// operation before this one completed. Its result was dropped.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Ticket identifies one issued request.
type Ticket uint64

// Counter is a generation counter owned by one logical operation
// ("fetch a quote", "load trending tokens"). Only the latest ticket may apply
// its result. It does not cancel older requests, it only ignores them.
type Counter struct {
	n atomic.Uint64
}

// Next issues a new ticket and makes every earlier one stale.
func (c *Counter) Next() Ticket {
	return Ticket(c.n.Add(1))
}

// IsCurrent reports whether t is still the most recently issued ticket.
func (c *Counter) IsCurrent(t Ticket) bool {
	return c.n.Load() == uint64(t)
}

// Invalidate makes all outstanding tickets stale without issuing a request.
func (c *Counter) Invalidate() {
	c.n.Add(1)
}

// Guard runs fn for ticket t and hands its result, error included, to apply
// only if t is still current when fn returns. Otherwise apply is skipped and
// ErrSuperseded returned.
//
// When mu is non-nil it is held across the currency check and apply, so an
// owner that invalidates under the same lock can never race a late result.
// mu must not be held by the caller.
func Guard[T, R any](
	ctx context.Context,
	c *Counter,
	t Ticket,
	mu sync.Locker,
	fn func(context.Context) (T, error),
	apply func(T, error) (R, error),
) (R, error) {
	v, err := fn(ctx)

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	if !c.IsCurrent(t) {
		var zero R
		return zero, ErrSuperseded
	}
	return apply(v, err)
}
