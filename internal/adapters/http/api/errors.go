package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidMatchID = errors.New("match id must be a uuid")
	ErrNoStore        = errors.New("state store is required")
)
