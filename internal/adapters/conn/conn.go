// Package conn is the client side of the tournament protocol: a websocket
// connection that performs the Connect handshake and exposes inbound packets
// as a lazy sequence.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
)

const (
	// DefaultClientVersion is the protocol version announced in Connect.
	DefaultClientVersion int32 = 74

	defaultWriteTimeout = 10 * time.Second
	closeGrace          = time.Second
)

// State is the lifecycle of a Conn.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one protocol connection to the origin server.
type Conn struct {
	ws   *websocket.Conn
	user model.User
	uri  string
	opts options

	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens a websocket to uri and sends the Connect request for a
// synthetic websocket-connection user named displayName.
func Dial(ctx context.Context, uri, displayName string, opts ...Option) (*Conn, error) {
	o := options{
		clientVersion: DefaultClientVersion,
		dialer:        websocket.DefaultDialer,
		writeTimeout:  defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get().Named("conn")
	}

	c := &Conn{
		uri:  uri,
		opts: o,
		user: model.User{
			GUID:       uuid.NewString(),
			Name:       displayName,
			ClientType: model.ClientTypeWebsocketConnection,
		},
	}
	c.state.Store(int32(StateConnecting))

	ws, resp, err := o.dialer.DialContext(ctx, uri, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, uri, err)
	}
	c.ws = ws

	user := c.user
	hello := c.NewPacket(&wire.Request{Type: &wire.ConnectRequest{
		User:          &user,
		Password:      o.password,
		ClientVersion: o.clientVersion,
	}})
	if err := c.write(ctx, hello); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshakeSend, err)
	}
	c.state.Store(int32(StateConnected))

	o.log.Debug(ctx, "connected",
		logger.String("uri", uri),
		logger.String("name", displayName),
		logger.String("guid", c.user.GUID),
	)
	return c, nil
}

// User returns the synthetic user this connection registered as.
func (c *Conn) User() model.User { return c.user.Clone() }

// State reports the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// NewPacket wraps payload in a packet with a fresh id, sent from this connection's user.
func (c *Conn) NewPacket(payload wire.Payload) *wire.Packet {
	return &wire.Packet{ID: uuid.NewString(), From: c.user.GUID, Payload: payload}
}

// Send writes one packet. No acknowledgement is awaited.
func (c *Conn) Send(ctx context.Context, p *wire.Packet) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	if err := c.write(ctx, p); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

func (c *Conn) write(ctx context.Context, p *wire.Packet) error {
	b, err := wire.Encode(p)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.writeTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, b)
}

// Next blocks for the next inbound packet. It returns io.EOF once the peer
// closes the connection or Close was called. A frame that fails to decode
// yields an ErrDecode error and leaves the connection usable; a transport
// failure yields ErrReceive and closes it.
func (c *Conn) Next() (*wire.Packet, error) {
	for {
		if c.State() == StateClosed {
			return nil, io.EOF
		}
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			closedLocally := c.State() == StateClosed
			_ = c.Close()
			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %w", ErrReceive, err)
		}
		if mt != websocket.BinaryMessage {
			c.opts.log.Debug(context.Background(), "skipping non-binary frame", logger.Int("type", mt))
			continue
		}
		p, err := wire.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return p, nil
	}
}

// Packets returns the inbound packets as a lazy sequence. Decode failures are
// yielded and the sequence continues; it ends when the peer closes, on a
// transport failure, or when ctx is cancelled (which also closes c).
func (c *Conn) Packets(ctx context.Context) iter.Seq2[*wire.Packet, error] {
	return func(yield func(*wire.Packet, error) bool) {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()

		for {
			p, err := c.Next()
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, ErrDecode):
				if !yield(nil, err) {
					return
				}
				continue
			case err != nil:
				if ctx.Err() == nil {
					yield(nil, err)
				}
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Close sends a close frame and releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		if c.ws == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = c.ws.Close()
	})
	return err
}
