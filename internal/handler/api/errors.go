package api

import (
	"errors"
	"net/http"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/service/scheduler"
	xhttp "MarketMood/pkg/http"
)

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUnknownMetric):
		return xhttp.NewAppError("ERR_UNKNOWN_METRIC", "metric", err.Error(), http.StatusBadRequest).
			WithParam("options", models.Metrics()).
			WithError(err)
	case errors.Is(err, scheduler.ErrStopped):
		return xhttp.NewAppError("ERR_SCHEDULER_STOPPED", "", err.Error(), http.StatusServiceUnavailable).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
