package server

import (
	"net/http"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/flags"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/wallet"
	"github.com/labstack/echo/v4"
)

func (h *Handlers) bindIntent(c echo.Context) (trigger.Intent, bool, error) {
	var in trigger.Intent
	if err := c.Bind(&in); err != nil {
		return in, false, h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if _, err := wallet.ParseAddress(in.Mint); err != nil {
		return in, false, h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": "must be a base58 mint address"})
	}
	if _, err := wallet.ParseAddress(in.WalletAddress); err != nil {
		return in, false, h.err(c, http.StatusBadRequest, "invalid walletAddress", map[string]any{"walletAddress": "must be a base58 address"})
	}
	return in, true, nil
}

// TriggerExpiries lists the accepted expiry presets
func (h *Handlers) TriggerExpiries(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": trigger.ExpiryPresets(), "default": "24h"})
}

// TriggerPreview derives order type and trigger price without placing anything
func (h *Handlers) TriggerPreview(c echo.Context) error {
	if h.Trigger == nil {
		return h.err(c, http.StatusServiceUnavailable, "trigger orders are not configured", nil)
	}
	in, ok, err := h.bindIntent(c)
	if !ok {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.execTimeout())
	defer cancel()

	p, err := h.Trigger.Prepare(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TriggerResponse{Order: p})
}

// TriggerPlace places a conditional order on the venue
func (h *Handlers) TriggerPlace(c echo.Context) error {
	if h.Trigger == nil {
		return h.err(c, http.StatusServiceUnavailable, "trigger orders are not configured", nil)
	}
	if !h.enabled(c.Request().Context(), flags.KeyTriggerOrders) {
		return h.gateClosed(c, flags.KeyTriggerOrders)
	}
	in, ok, err := h.bindIntent(c)
	if !ok {
		return err
	}

	ctx, cancel := h.execContext(c)
	defer cancel()

	p, ack, err := h.Trigger.Place(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, TriggerResponse{Order: p, Ack: &ack})
}
