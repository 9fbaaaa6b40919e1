package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidMarket     = errors.New("invalid market record")
	ErrUnsupportedSource = errors.New("unsupported import source")
	ErrLockHeld          = errors.New("lock already held")
)
