package staleness

import "time"

// DefaultTTL is how long a quote stays actionable.
const DefaultTTL = 30 * time.Second

// Policy decides whether a quote is still actionable. "Now" is always passed
// in by the caller.
type Policy struct {
	TTL time.Duration
}

// New returns a policy; a non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) Policy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Policy{TTL: ttl}
}

func (p Policy) ttlSeconds() int64 {
	if p.TTL <= 0 {
		return int64(DefaultTTL / time.Second)
	}
	return int64(p.TTL / time.Second)
}

// SecondsRemaining is max(0, ttl - floor((nowMs - requestedAtMs) / 1000)).
func (p Policy) SecondsRemaining(requestedAtMs, nowMs int64) int64 {
	elapsed := floorDiv(nowMs-requestedAtMs, 1000)
	return max(0, p.ttlSeconds()-elapsed)
}

// IsStale reports whether no whole second of validity is left.
func (p Policy) IsStale(requestedAtMs, nowMs int64) bool {
	return p.SecondsRemaining(requestedAtMs, nowMs) <= 0
}

// Deadline is the first instant at which a quote requested at requestedAtMs
// is stale. Timer-based drivers can sleep until it instead of polling.
func (p Policy) Deadline(requestedAtMs int64) time.Time {
	return time.UnixMilli(requestedAtMs + p.ttlSeconds()*1000)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
