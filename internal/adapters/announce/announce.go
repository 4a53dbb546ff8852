// Package announce re-publishes matches to the origin server on short-lived
// outbound connections.
package announce

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/tarelay/internal/adapters/conn"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultAttemptTimeout = 10 * time.Second
)

// Announcer opens a fresh connection per announcement, sends MatchUpdated
// and closes it, retrying with exponential backoff.
type Announcer struct {
	uri  string
	name string

	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	attemptTimeout time.Duration
	connOpts       []conn.Option
	log            logger.Logger
}

// New creates an Announcer dialing uri as displayName.
func New(uri, displayName string, opts ...Option) *Announcer {
	a := &Announcer{
		uri:            uri,
		name:           displayName,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("announce")
	}
	return a
}

// Announce sends m as a MatchUpdated event.
func (a *Announcer) Announce(ctx context.Context, m model.Match) error {
	attempt := 0
	op := func() error {
		attempt++
		err := a.once(ctx, m)
		if errors.Is(err, wire.ErrInvalidPacket) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	b.MaxInterval = a.maxBackoff
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		a.log.Warn(ctx, "announce attempt failed, retrying",
			logger.String("match", m.GUID),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, a.maxRetries), ctx), notify)
	if err != nil {
		return err
	}
	a.log.Debug(ctx, "match announced", logger.String("match", m.GUID), logger.Int("attempts", attempt))
	return nil
}

func (a *Announcer) once(ctx context.Context, m model.Match) error {
	ctx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
	defer cancel()

	c, err := conn.Dial(ctx, a.uri, a.name, a.connOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	match := m.Clone()
	return c.Send(ctx, c.NewPacket(&wire.Event{ChangedObject: &wire.MatchUpdatedEvent{Match: &match}}))
}
