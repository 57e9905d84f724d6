package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	xhttp "MarketMood/pkg/http"
	xlogger "MarketMood/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler serves /healthz.
type HealthHandler struct {
	logger *xlogger.Logger
	store  Pinger
}

func NewHealthHandler(logger *xlogger.Logger, store Pinger) *HealthHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &HealthHandler{logger: logger, store: store}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
}

func (h *HealthHandler) Healthz(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"store": "down"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"store": "up"})
}
