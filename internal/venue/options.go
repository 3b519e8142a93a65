package venue

import (
	"net/url"
	"strconv"
	"strings"
)

// QuoteOptions are routing knobs forwarded on every quote request.
type QuoteOptions struct {
	SwapMode string // ExactIn | ExactOut

	Dexes        []string
	ExcludeDexes []string

	RestrictIntermediateTokens *bool
	OnlyDirectRoutes           *bool

	MaxAccounts *uint64
}

func (o QuoteOptions) apply(q url.Values) {
	if o.SwapMode != "" {
		q.Set("swapMode", o.SwapMode)
	}
	if len(o.Dexes) > 0 {
		q.Set("dexes", strings.Join(o.Dexes, ","))
	}
	if len(o.ExcludeDexes) > 0 {
		q.Set("excludeDexes", strings.Join(o.ExcludeDexes, ","))
	}
	if o.RestrictIntermediateTokens != nil {
		q.Set("restrictIntermediateTokens", strconv.FormatBool(*o.RestrictIntermediateTokens))
	}
	if o.OnlyDirectRoutes != nil {
		q.Set("onlyDirectRoutes", strconv.FormatBool(*o.OnlyDirectRoutes))
	}
	if o.MaxAccounts != nil {
		q.Set("maxAccounts", strconv.FormatUint(*o.MaxAccounts, 10))
	}
}
