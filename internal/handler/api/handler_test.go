package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/service/ratelimit"
	"MarketMood/internal/service/scheduler"
)

type fakeHistory struct {
	gotIDs    []string
	gotMetric models.Metric
	gotDays   int
	gotOrder  string
	gotLimit  int
	gotWeight float64
	err       error
}

func (f *fakeHistory) Timeseries(_ context.Context, id string, days int) ([]models.DailyState, error) {
	f.gotIDs, f.gotDays = []string{id}, days
	if f.err != nil {
		return nil, f.err
	}
	return []models.DailyState{{MarketID: id, MoodIndex: 0.1}}, nil
}

func (f *fakeHistory) Compare(_ context.Context, ids []string, m models.Metric, days int) ([]models.MetricComparison, error) {
	f.gotIDs, f.gotMetric, f.gotDays = ids, m, days
	return []models.MetricComparison{}, f.err
}

func (f *fakeHistory) Rankings(_ context.Context, m models.Metric, order string, limit int) (models.Rankings, error) {
	f.gotMetric, f.gotOrder, f.gotLimit = m, order, limit
	return models.Rankings{Metric: m, Order: order}, f.err
}

func (f *fakeHistory) Network(_ context.Context, w float64) (models.Network, error) {
	f.gotWeight = w
	return models.Network{Nodes: []models.NetworkNode{}, Edges: []models.CorrelationEdge{}}, f.err
}

type fakeSnapshot struct{ err error }

func (f fakeSnapshot) Latest(context.Context) (models.LatestSnapshot, error) {
	return models.LatestSnapshot{Date: time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)}, f.err
}

type fakeControl struct {
	runs     int
	cleanups []int
	err      error
}

func (f *fakeControl) Status() scheduler.Status {
	return scheduler.Status{State: scheduler.StateRunning}
}

func (f *fakeControl) TriggerRun() error {
	f.runs++
	return f.err
}

func (f *fakeControl) TriggerCleanup(days int) error {
	f.cleanups = append(f.cleanups, days)
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Health(context.Context) error { return f.err }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func historyEcho(h *fakeHistory, snap fakeSnapshot) *echo.Echo {
	e := echo.New()
	NewHistoryHandler(nil, h, snap).RegisterRoutes(e)
	return e
}

func TestTimeseriesDefaultsAndValidation(t *testing.T) {
	h := &fakeHistory{}
	e := historyEcho(h, fakeSnapshot{})

	rec, env := serve(t, e, http.MethodGet, "/api/v1/history/timeseries?market_id=US_SPX")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, 30, h.gotDays)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/timeseries?market_id=US_SPX&days=400")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/timeseries")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeseriesNotFound(t *testing.T) {
	h := &fakeHistory{err: models.ErrNotFound}
	rec, env := serve(t, historyEcho(h, fakeSnapshot{}), http.MethodGet, "/api/v1/history/timeseries?market_id=XX")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestCompareParsesIDsAndMetric(t *testing.T) {
	h := &fakeHistory{}
	e := historyEcho(h, fakeSnapshot{})

	rec, _ := serve(t, e, http.MethodGet, "/api/v1/history/compare?market_ids=US_SPX,%20GB_FTSE,&metric=volatility_30d&days=7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"US_SPX", "GB_FTSE"}, h.gotIDs)
	assert.Equal(t, models.MetricVolatility30d, h.gotMetric)
	assert.Equal(t, 7, h.gotDays)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/compare?market_ids=US_SPX&metric=sharpe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/compare?market_ids=,,")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankingsDefaults(t *testing.T) {
	h := &fakeHistory{}
	e := historyEcho(h, fakeSnapshot{})

	rec, _ := serve(t, e, http.MethodGet, "/api/v1/history/rankings")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MetricMoodIndex, h.gotMetric)
	assert.Equal(t, "desc", h.gotOrder)
	assert.Equal(t, 15, h.gotLimit)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/rankings?order=sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, e, http.MethodGet, "/api/v1/history/rankings?limit=51")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNetworkKeepsExplicitZeroWeight(t *testing.T) {
	h := &fakeHistory{}
	e := historyEcho(h, fakeSnapshot{})

	_, _ = serve(t, e, http.MethodGet, "/api/v1/history/network")
	assert.Equal(t, 0.6, h.gotWeight)

	rec, _ := serve(t, e, http.MethodGet, "/api/v1/history/network?min_weight=0")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, h.gotWeight)
}

func TestLatestSnapshot(t *testing.T) {
	rec, env := serve(t, historyEcho(&fakeHistory{}, fakeSnapshot{}), http.MethodGet, "/api/v1/snapshot/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "2025-04-07")

	rec, _ = serve(t, historyEcho(&fakeHistory{}, fakeSnapshot{err: errors.New("db down")}), http.MethodGet, "/api/v1/snapshot/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func schedulerEcho(ctl *fakeControl, capacity float64) *echo.Echo {
	e := echo.New()
	NewSchedulerHandler(nil, ctl, ratelimit.New(), TriggerLimits{Capacity: capacity, RefillPerSec: 0}, 90).RegisterRoutes(e)
	return e
}

func TestTriggerRunAcceptedThenRateLimited(t *testing.T) {
	ctl := &fakeControl{}
	e := schedulerEcho(ctl, 2)

	for i := 0; i < 2; i++ {
		rec, _ := serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/run")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec, _ := serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/run")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, ctl.runs)
}

func TestTriggerCleanupDays(t *testing.T) {
	ctl := &fakeControl{}
	e := schedulerEcho(ctl, 10)

	rec, _ := serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/cleanup")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/cleanup?days_to_keep=0")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/cleanup?days_to_keep=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = serve(t, e, http.MethodPost, "/api/v1/scheduler/trigger/cleanup?days_to_keep=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []int{90, 0}, ctl.cleanups)
}

func TestTriggerOnStoppedScheduler(t *testing.T) {
	ctl := &fakeControl{err: scheduler.ErrStopped}
	rec, _ := serve(t, schedulerEcho(ctl, 10), http.MethodPost, "/api/v1/scheduler/trigger/run")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchedulerStatus(t *testing.T) {
	rec, env := serve(t, schedulerEcho(&fakeControl{}, 1), http.MethodGet, "/api/v1/scheduler/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"state":"running"`)
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	NewHealthHandler(nil, fakePinger{}).RegisterRoutes(e)
	rec, _ := serve(t, e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	e = echo.New()
	NewHealthHandler(nil, fakePinger{err: errors.New("closed")}).RegisterRoutes(e)
	rec, _ = serve(t, e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
