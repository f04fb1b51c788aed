package domain

import "errors"

var (
	// ErrInsufficientData is returned by indicator functions called with less
	// history than their declared minimum. Strategies treat it as "no signal".
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoData marks an exchange response with no candles for the request.
	ErrNoData = errors.New("no data")

	// ErrRateLimited marks an exchange 429; the connector backs off before
	// retrying.
	ErrRateLimited = errors.New("rate limited")

	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("service unavailable")
)
