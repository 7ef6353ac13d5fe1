package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
// Input and data-sufficiency errors are defined in the domain package.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Store Errors. ErrStore is retryable at the caller's boundary and is
	// never retried inside an adapter.
	ErrStore       = errors.New("ticker store unavailable")
	ErrQueryFailed = errors.New("database query failed")

	// Market Data Source Errors
	ErrSourceUnavailable = errors.New("market data source is unavailable")
	ErrRateLimited       = errors.New("API rate limit exceeded")
	ErrConnectionFailed  = errors.New("failed to connect to the market data source")

	// Publisher Errors
	ErrPublishFailed = errors.New("failed to publish signal")
)
