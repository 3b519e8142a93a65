package server

import (
	"net/http"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/wallet"
	"github.com/labstack/echo/v4"
)

// bindQuoteRequest decodes a quote.Request and checks that every address in
// it is a base58 public key. It writes the 400 itself and returns ok=false.
func (h *Handlers) bindQuoteRequest(c echo.Context) (quote.Request, bool, error) {
	var req quote.Request
	if err := c.Bind(&req); err != nil {
		return req, false, h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	details := map[string]any{}
	if _, err := wallet.ParseAddress(req.InputMint); err != nil {
		details["inputMint"] = "must be a base58 mint address"
	}
	if _, err := wallet.ParseAddress(req.OutputMint); err != nil {
		details["outputMint"] = "must be a base58 mint address"
	}
	if req.WalletAddress != "" {
		if _, err := wallet.ParseAddress(req.WalletAddress); err != nil {
			details["walletAddress"] = "must be a base58 address"
		}
	}
	if len(details) > 0 {
		return req, false, h.err(c, http.StatusBadRequest, "invalid address", details)
	}
	return req, true, nil
}

// Quote prices a swap without a session. Nothing is held, so the result is
// informational only.
func (h *Handlers) Quote(c echo.Context) error {
	if h.Quotes == nil {
		return h.err(c, http.StatusServiceUnavailable, "quotes are not configured", nil)
	}
	req, ok, err := h.bindQuoteRequest(c)
	if !ok {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.execTimeout())
	defer cancel()

	out, err := h.Quotes.RequestQuote(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
