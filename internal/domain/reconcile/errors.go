package reconcile

import "errors"

// Sentinel kinds for reconciliation errors.
var (
	// ErrMissingPayload marks a packet without the inner payload its kind requires.
	ErrMissingPayload = errors.New("missing payload")
	// ErrUnknownPlayer is returned for a score that names no known player.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrMissingScoreRecord is returned when a song finishes with no score on file.
	ErrMissingScoreRecord = errors.New("missing score record")
	// ErrUnimplementedKind marks a recognized message kind the relay does not handle.
	ErrUnimplementedKind = errors.New("unimplemented message kind")
	// ErrAnnounce wraps a failed match re-announcement. The stored match is kept.
	ErrAnnounce = errors.New("match announce failed")
)
