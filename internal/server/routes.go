package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	execRate, execBurst := cfg.ExecRate, cfg.ExecBurst
	if execRate <= 0 {
		execRate = 1
	}
	if execBurst <= 0 {
		execBurst = 5
	}
	limitExec := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(execRate),
		Burst:     execBurst,
		ExpiresIn: 2 * time.Minute,
	}))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.POST("/quote", h.Quote) // one-shot quote, no session
	v1.GET("/tokens", h.TokenList)
	v1.GET("/executions/recent", h.RecentExecutions)
	v1.GET("/risk", h.RiskStatus)

	// One session is one trade screen: a state machine with its own quote
	sg := v1.Group("/sessions")
	sg.POST("", h.SessionCreate)
	sg.GET("/:id", h.SessionGet)
	sg.DELETE("/:id", h.SessionDelete)
	sg.POST("/:id/quote", h.SessionQuote)
	sg.POST("/:id/confirm", h.SessionConfirm)
	sg.POST("/:id/cancel", h.SessionCancel)
	sg.POST("/:id/submit", h.SessionSubmit, limitExec)
	sg.POST("/:id/instant", h.SessionInstant, limitExec)
	sg.POST("/:id/reset", h.SessionReset)

	tg := v1.Group("/trigger")
	tg.GET("/expiries", h.TriggerExpiries)
	tg.POST("/preview", h.TriggerPreview)
	tg.POST("/orders", h.TriggerPlace, limitExec)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
