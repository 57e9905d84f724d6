package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/service/metrics"
	"MarketMood/internal/service/ratelimit"
	"MarketMood/internal/service/scheduler"
	xhttp "MarketMood/pkg/http"
	xlogger "MarketMood/pkg/logger"
)

// SchedulerControl is the scheduler surface exposed over HTTP.
type SchedulerControl interface {
	Status() scheduler.Status
	TriggerRun() error
	TriggerCleanup(daysToKeep int) error
}

// TriggerLimits throttles manual triggers per client.
type TriggerLimits struct {
	Capacity     float64
	RefillPerSec float64
}

// SchedulerHandler exposes scheduler status and manual triggers.
type SchedulerHandler struct {
	logger      *xlogger.Logger
	ctl         SchedulerControl
	rl          *ratelimit.Limiter
	limits      TriggerLimits
	defaultDays int
}

func NewSchedulerHandler(logger *xlogger.Logger, ctl SchedulerControl, rl *ratelimit.Limiter, limits TriggerLimits, defaultDays int) *SchedulerHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if rl == nil {
		rl = ratelimit.New()
	}
	return &SchedulerHandler{logger: logger, ctl: ctl, rl: rl, limits: limits, defaultDays: defaultDays}
}

func (h *SchedulerHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/scheduler")
	g.GET("/status", h.Status)
	g.POST("/trigger/run", h.TriggerRun)
	g.POST("/trigger/cleanup", h.TriggerCleanup)
}

func (h *SchedulerHandler) Status(c echo.Context) error {
	defer observe("scheduler_status", time.Now())
	return xhttp.SuccessResponse(c, h.ctl.Status())
}

func (h *SchedulerHandler) TriggerRun(c echo.Context) error {
	defer observe("trigger_run", time.Now())
	if !h.allow(c, "trigger_run") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many manual triggers, retry later"))
	}
	if err := h.ctl.TriggerRun(); err != nil {
		return h.fail(c, "trigger_run", err)
	}
	h.logger.Info("manual pipeline run triggered", xlogger.String("remote", c.RealIP()))
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"job":    scheduler.JobDailyPipeline,
		"status": "accepted",
	})
}

func (h *SchedulerHandler) TriggerCleanup(c echo.Context) error {
	defer observe("trigger_cleanup", time.Now())
	req := &models.CleanupRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if c.QueryParam("days_to_keep") == "" {
		req.DaysToKeep = h.defaultDays
	}
	if !h.allow(c, "trigger_cleanup") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many manual triggers, retry later"))
	}
	if err := h.ctl.TriggerCleanup(req.DaysToKeep); err != nil {
		return h.fail(c, "trigger_cleanup", err)
	}
	h.logger.Info("manual retention cleanup triggered",
		xlogger.Int("days_to_keep", req.DaysToKeep),
		xlogger.String("remote", c.RealIP()),
	)
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"job":          scheduler.JobRetentionCleanup,
		"status":       "accepted",
		"days_to_keep": req.DaysToKeep,
	})
}

func (h *SchedulerHandler) allow(c echo.Context, action string) bool {
	if h.rl.Allow(c.RealIP()+":"+action, h.limits.Capacity, h.limits.RefillPerSec) {
		return true
	}
	h.logger.Warn(action+" rate_limited", xlogger.String("remote", c.RealIP()))
	return false
}

func (h *SchedulerHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	h.logger.Error(endpoint+" failed", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, toAppError(err))
}
