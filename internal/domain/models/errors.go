package models

import "errors"

var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrNoDataAvailable    = errors.New("no data available")
	ErrComputationFailure = errors.New("computation failure")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrInsufficientData   = errors.New("insufficient data")
)
