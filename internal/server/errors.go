package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/risk"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/sequence"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/session"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

var errNotConfigured = errors.New("not configured on this server")

// statusFor maps engine errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTooMany):
		return http.StatusTooManyRequests
	case errors.Is(err, units.ErrInvalidAmount),
		errors.Is(err, units.ErrDecimalsUnavailable),
		errors.Is(err, quote.ErrInvalidRequest),
		errors.Is(err, trigger.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, trigger.ErrTriggerUnresolvable),
		errors.Is(err, risk.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, execution.ErrStaleQuote),
		errors.Is(err, execution.ErrInvalidTransition),
		errors.Is(err, sequence.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, quote.ErrQuoteFault),
		errors.Is(err, execution.ErrExecutionFault),
		errors.Is(err, trigger.ErrPlacementFault):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status statusFor picks. Internal errors only
// expose their message in dev mode.
func (h *Handlers) fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger().WithError(err).WithField("path", c.Path()).Error("request failed")
		return h.err(c, code, "internal server error", map[string]any{"err": err.Error()})
	}
	return h.err(c, code, err.Error(), nil)
}
