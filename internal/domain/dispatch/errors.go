package dispatch

import "errors"

// Sentinel kinds for dispatch errors.
var (
	// ErrUnhandledType marks a payload kind that is not routed to the engine.
	ErrUnhandledType = errors.New("unhandled payload type")
)
