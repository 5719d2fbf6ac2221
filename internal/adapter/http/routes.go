package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health *Handler
	Events *EventHandler
	Loans  *LoanHandler
}

// Register mounts every route; guard wraps the storage event endpoint only.
func Register(e *echo.Echo, h Handlers, guard echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)
	e.GET("/metrics", h.Health.Metrics())

	events := []echo.MiddlewareFunc{}
	if guard != nil {
		events = append(events, guard)
	}
	e.POST("/events/storage", h.Events.Storage, events...)

	e.GET("/loans/:loan_id", h.Loans.GetLoan)
	e.POST("/loans/:loan_id/verify", h.Loans.RetryVerification)
	e.GET("/users/:user_id/rejections", h.Loans.ListRejections)
}
