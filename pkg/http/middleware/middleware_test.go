package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	applogger "MarketMood/pkg/logger"
)

func TestRecoverTurnsPanicInto500(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()))
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsRecordsErrorsOnce(t *testing.T) {
	e := echo.New()
	e.Use(Metrics(applogger.Nop(), time.Second))
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
