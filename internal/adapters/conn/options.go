package conn

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/tarelay/pkg/logger"
)

// Option configures Dial.
type Option func(*options)

type options struct {
	clientVersion int32
	password      string
	dialer        *websocket.Dialer
	writeTimeout  time.Duration
	log           logger.Logger
}

// WithClientVersion sets the version sent in the Connect request.
func WithClientVersion(v int32) Option {
	return func(o *options) {
		if v > 0 {
			o.clientVersion = v
		}
	}
}

// WithPassword sets the password sent in the Connect request.
func WithPassword(p string) Option {
	return func(o *options) { o.password = p }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithWriteTimeout bounds a single write when ctx carries no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
