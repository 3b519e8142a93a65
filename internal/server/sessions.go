package server

import (
	"net/http"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/flags"
	"github.com/labstack/echo/v4"
)

func (h *Handlers) machine(c echo.Context) (*execution.Machine, error) {
	if h.Sessions == nil {
		return nil, errNotConfigured
	}
	return h.Sessions.Get(c.Param("id"))
}

func (h *Handlers) snapshot(c echo.Context, m *execution.Machine) error {
	return c.JSON(http.StatusOK, SessionResponse{ID: m.ID(), Snapshot: m.Snapshot()})
}

// SessionCreate opens a session in the idle phase
func (h *Handlers) SessionCreate(c echo.Context) error {
	if h.Sessions == nil {
		return h.err(c, http.StatusServiceUnavailable, "sessions are not configured", nil)
	}
	id, m, err := h.Sessions.Create()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, SessionResponse{ID: id, Snapshot: m.Snapshot()})
}

// SessionGet returns the session snapshot, including seconds left on a held quote
func (h *Handlers) SessionGet(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.snapshot(c, m)
}

// SessionDelete tears the session down; any in-flight result is discarded
func (h *Handlers) SessionDelete(c echo.Context) error {
	if h.Sessions == nil {
		return h.err(c, http.StatusServiceUnavailable, "sessions are not configured", nil)
	}
	if err := h.Sessions.Close(c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SessionQuote requests a fresh quote. A newer request on the same session
// wins; the older call answers 409.
func (h *Handlers) SessionQuote(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	req, ok, err := h.bindQuoteRequest(c)
	if !ok {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.execTimeout())
	defer cancel()

	if _, err := m.RequestQuote(ctx, req); err != nil {
		return h.fail(c, err)
	}
	return h.snapshot(c, m)
}

// SessionConfirm opens the confirmation step on a fresh quote
func (h *Handlers) SessionConfirm(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := m.Confirm(); err != nil {
		return h.fail(c, err)
	}
	return h.snapshot(c, m)
}

// SessionCancel backs out of confirmation and keeps the quote
func (h *Handlers) SessionCancel(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := m.CancelConfirm(); err != nil {
		return h.fail(c, err)
	}
	return h.snapshot(c, m)
}

// SessionSubmit sends the confirmed quote to the venue
func (h *Handlers) SessionSubmit(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	if !h.enabled(c.Request().Context(), flags.KeySubmit) {
		return h.gateClosed(c, flags.KeySubmit)
	}

	ctx, cancel := h.execContext(c)
	defer cancel()

	out, err := m.Submit(ctx)
	return h.executed(c, m, out, err)
}

// SessionInstant quotes and submits in one step, without confirmation
func (h *Handlers) SessionInstant(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	for _, key := range []string{flags.KeySubmit, flags.KeyInstant} {
		if !h.enabled(c.Request().Context(), key) {
			return h.gateClosed(c, key)
		}
	}
	req, ok, err := h.bindQuoteRequest(c)
	if !ok {
		return err
	}

	ctx, cancel := h.execContext(c)
	defer cancel()

	out, err := m.ExecuteInstant(ctx, req)
	return h.executed(c, m, out, err)
}

// executed answers an execution attempt. Outcomes that reached a terminal
// phase are reported with the error status and the outcome attached.
func (h *Handlers) executed(c echo.Context, m *execution.Machine, out execution.Outcome, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, ExecutionResponse{Outcome: out, Snapshot: m.Snapshot()})
	}
	snap := m.Snapshot()
	if snap.Phase.Terminal() && !execution.IsRejection(err) {
		return c.JSON(statusFor(err), ErrorResponse{
			Error:   err.Error(),
			Code:    statusFor(err),
			Details: ExecutionResponse{Outcome: out, Snapshot: snap},
		})
	}
	return h.fail(c, err)
}

// SessionReset returns a finished session to idle
func (h *Handlers) SessionReset(c echo.Context) error {
	m, err := h.machine(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := m.Reset(); err != nil {
		return h.fail(c, err)
	}
	return h.snapshot(c, m)
}
