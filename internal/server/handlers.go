package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/flags"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/risk"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/session"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/storage"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/units"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// FlagStore is the feature-flag backend. *flags.Store implements it.
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
	Enabled(ctx context.Context, key string, def bool) bool
}

var _ FlagStore = (*flags.Store)(nil)

var fallbackLogger = logrus.New()

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Quotes   execution.Quoter       // one-shot quotes
	Tokens   *units.Registry        // known tokens, for /v1/tokens
	Sessions *session.Registry      // per-session state machines
	Trigger  *trigger.Engine        // conditional orders (optional)
	Risk     *risk.Manager          // risk limits (optional)
	Cache    storage.ExecutionCache // recent outcomes (optional)
	Flags    FlagStore              // gates and flags CRUD (optional)
	DevMode  bool                   // Enable detailed error responses in development
	Logger   *logrus.Logger

	// ExecTimeout bounds quote and execution calls, default 30s
	ExecTimeout time.Duration
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// execContext bounds an execution by ExecTimeout only. A client that hangs
// up must not cancel a swap the venue may still land.
func (h *Handlers) execContext(c echo.Context) (context.Context, context.CancelFunc) {
	return h.withTimeout(context.WithoutCancel(c.Request().Context()), h.execTimeout())
}

func (h *Handlers) execTimeout() time.Duration {
	if h.ExecTimeout > 0 {
		return h.ExecTimeout
	}
	return 30 * time.Second
}

// logger never writes to h; NewServer sets Logger before any request runs.
func (h *Handlers) logger() *logrus.Logger {
	if h.Logger == nil {
		return fallbackLogger
	}
	return h.Logger
}

// enabled reads a gate, falling back to flags.Defaults when no store is wired.
func (h *Handlers) enabled(ctx context.Context, key string) bool {
	if h.Flags == nil {
		return flags.Defaults[key]
	}
	ctx, cancel := h.withTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.Flags.Enabled(ctx, key, flags.Defaults[key])
}

func (h *Handlers) gateClosed(c echo.Context, key string) error {
	return h.err(c, http.StatusForbidden, "disabled by flag "+key, nil)
}

// Health reports liveness, open sessions and cache reachability
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}
	if h.Sessions != nil {
		resp.Sessions = h.Sessions.Len()
	}
	if h.Cache != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		resp.Cache = "ok"
		if err := h.Cache.Ping(ctx); err != nil {
			resp.Cache = "down"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// TokenList lists the tokens whose decimals are known
func (h *Handlers) TokenList(c echo.Context) error {
	reg := h.Tokens
	if reg == nil {
		reg = units.NewRegistry()
	}
	return c.JSON(http.StatusOK, map[string]any{"items": reg.List()})
}

// RecentExecutions returns the newest finished attempts
// Accepts limit query parameter (default: 20, range: 1-MaxRecentExecutions)
func (h *Handlers) RecentExecutions(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusServiceUnavailable, "execution history is not configured", nil)
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxRecentExecutions {
		return h.err(c, http.StatusBadRequest, "invalid limit",
			map[string]any{"limit": "min 1 max " + strconv.Itoa(constants.MaxRecentExecutions)})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentExecutions(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get executions", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// RiskStatus reports risk limits and today's usage
func (h *Handlers) RiskStatus(c echo.Context) error {
	if h.Risk == nil {
		return h.err(c, http.StatusServiceUnavailable, "risk limits are not configured", nil)
	}
	return c.JSON(http.StatusOK, h.Risk.Status())
}

// FlagsUpsert creates or updates a feature flag with the given key and value
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing feature flag with the given key
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all feature flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
