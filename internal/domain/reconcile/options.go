package reconcile

import "github.com/okian/tarelay/pkg/logger"

// DefaultTransmitMarker identifies the relay's own outbound identity by name.
const DefaultTransmitMarker = "TX"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAnnouncer sets the announcer used after MatchCreated.
func WithAnnouncer(a Announcer) Option {
	return func(e *Engine) { e.announcer = a }
}

// WithScoreSink sets where accepted realtime scores are copied.
func WithScoreSink(s ScoreSink) Option {
	return func(e *Engine) { e.scores = s }
}

// WithTransmitMarker sets the substring that marks transmit connections.
func WithTransmitMarker(marker string) Option {
	return func(e *Engine) {
		if marker != "" {
			e.transmitMarker = marker
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
