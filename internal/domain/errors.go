package domain

import "errors"

// Errors returned to callers of a search.
var (
	ErrInvalidLocation    = errors.New("Invalid location") //nolint:staticcheck // surfaced verbatim to API clients
	ErrUnsupportedProduct = errors.New("product not supported")
	ErrInvalidWeights     = errors.New("weights must sum to 1.0")
	ErrInvalidVolume      = errors.New("volume must be a positive number")
	ErrNoDataFound        = errors.New("No data found") //nolint:staticcheck // surfaced verbatim to API clients
)

// Errors absorbed inside the engine; they only show up in logs and metrics.
var (
	ErrProviderTimeout = errors.New("provider timed out")
	ErrUnknownRegion   = errors.New("unknown region")
)
