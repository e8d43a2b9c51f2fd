package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores (session store, settings
// sources, catalog loaders) return these, optionally wrapped, and services
// translate them into domain errors:
// - ErrNotFound: record does not exist in the store
// - ErrExpired: the record outlived its TTL
// - ErrConflict: a concurrent writer won an optimistic-lock race
// - ErrInvalidState: the record is in the wrong state for the operation
// - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
