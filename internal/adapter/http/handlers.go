package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const checkTimeout = 2 * time.Second

// Check tests one dependency; nil means healthy.
type Check func(ctx context.Context) error

type Handler struct {
	checks map[string]Check
}

func NewHandler(checks map[string]Check) *Handler { return &Handler{checks: checks} }

// Health reports every dependency check and answers 503 when any fails.
func (h *Handler) Health(c echo.Context) error {
	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, n := range names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
		err := h.checks[n](ctx)
		cancel()
		if err != nil {
			results[n] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[n] = "ok"
	}

	return c.JSON(code, map[string]any{
		"status": status,
		"checks": results,
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Metrics exposes the default prometheus registry.
func (h *Handler) Metrics() echo.HandlerFunc { return echo.WrapHandler(promhttp.Handler()) }
