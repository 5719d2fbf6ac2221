package http

import (
	"context"
	"net/http"

	"collateral-evidence/internal/adapter/middleware"
	"collateral-evidence/internal/usecase/evidence"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type EventProcessor interface {
	Process(ctx context.Context, ev evidence.StorageEvent) (evidence.Outcome, error)
}

type EventHandler struct {
	p   EventProcessor
	log *logrus.Logger
}

func NewEventHandler(p EventProcessor, log *logrus.Logger) *EventHandler {
	return &EventHandler{p: p, log: log}
}

// storageEventReq is the object-finalize payload pushed by the storage notification.
type storageEventReq struct {
	Bucket      string         `json:"bucket" validate:"required,max=222"`
	Name        string         `json:"name" validate:"required,objectpath"`
	ContentType string         `json:"contentType"`
	Metadata    map[string]any `json:"metadata"`
}

type eventResp struct {
	Outcome   string `json:"outcome"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *EventHandler) Storage(c echo.Context) error {
	var req storageEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	outcome, err := h.p.Process(c.Request().Context(), evidence.StorageEvent(req))
	if err != nil {
		h.log.WithFields(logrus.Fields{"path": req.Name, "error": err}).Error("storage event not processed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "event not processed"})
	}
	if outcome.Retryable() {
		c.Response().Header().Set(middleware.HeaderRetryable, "true")
	}
	return c.JSON(http.StatusOK, eventResp{Outcome: string(outcome), Retryable: outcome.Retryable()})
}
