package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/service/metrics"
	xhttp "MarketMood/pkg/http"
	xlogger "MarketMood/pkg/logger"
	"MarketMood/pkg/util"
)

// HistoryQuerier answers read-side history queries.
type HistoryQuerier interface {
	Timeseries(ctx context.Context, marketID string, days int) ([]models.DailyState, error)
	Compare(ctx context.Context, marketIDs []string, metric models.Metric, days int) ([]models.MetricComparison, error)
	Rankings(ctx context.Context, metric models.Metric, order string, limit int) (models.Rankings, error)
	Network(ctx context.Context, minWeight float64) (models.Network, error)
}

// SnapshotProvider returns the newest persisted snapshot.
type SnapshotProvider interface {
	Latest(ctx context.Context) (models.LatestSnapshot, error)
}

// HistoryHandler serves snapshot and history endpoints.
type HistoryHandler struct {
	logger   *xlogger.Logger
	history  HistoryQuerier
	snapshot SnapshotProvider
}

func NewHistoryHandler(logger *xlogger.Logger, history HistoryQuerier, snapshot SnapshotProvider) *HistoryHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &HistoryHandler{logger: logger, history: history, snapshot: snapshot}
}

func (h *HistoryHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/snapshot/latest", h.Latest)
	g.GET("/history/timeseries", h.Timeseries)
	g.GET("/history/compare", h.Compare)
	g.GET("/history/rankings", h.Rankings)
	g.GET("/history/network", h.Network)
}

func (h *HistoryHandler) Latest(c echo.Context) error {
	defer observe("snapshot_latest", time.Now())
	snap, err := h.snapshot.Latest(c.Request().Context())
	if err != nil {
		return h.fail(c, "snapshot_latest", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, snap)
}

func (h *HistoryHandler) Timeseries(c echo.Context) error {
	defer observe("history_timeseries", time.Now())
	req := &models.TimeseriesRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	states, err := h.history.Timeseries(c.Request().Context(), req.MarketID, req.Days)
	if err != nil {
		return h.fail(c, "history_timeseries", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"market_id": req.MarketID,
		"days":      req.Days,
		"states":    states,
	})
}

func (h *HistoryHandler) Compare(c echo.Context) error {
	defer observe("history_compare", time.Now())
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ids := util.SplitCSV(req.MarketIDs)
	if len(ids) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("market_ids must name at least one market"))
	}
	metric, err := models.ParseMetric(req.Metric)
	if err != nil {
		return h.fail(c, "history_compare", err)
	}
	res, err := h.history.Compare(c.Request().Context(), ids, metric, req.Days)
	if err != nil {
		return h.fail(c, "history_compare", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HistoryHandler) Rankings(c echo.Context) error {
	defer observe("history_rankings", time.Now())
	req := &models.RankingsRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	metric, err := models.ParseMetric(req.Metric)
	if err != nil {
		return h.fail(c, "history_rankings", err)
	}
	res, err := h.history.Rankings(c.Request().Context(), metric, req.Order, req.Limit)
	if err != nil {
		return h.fail(c, "history_rankings", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HistoryHandler) Network(c echo.Context) error {
	defer observe("history_network", time.Now())
	req := &models.NetworkRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.history.Network(c.Request().Context(), req.MinWeight)
	if err != nil {
		return h.fail(c, "history_network", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HistoryHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
