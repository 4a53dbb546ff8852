package conn

import "errors"

// Sentinel kinds for connection errors.
var (
	ErrConnect       = errors.New("connect failed")
	ErrHandshakeSend = errors.New("handshake send failed")
	ErrSend          = errors.New("send failed")
	ErrReceive       = errors.New("receive failed")
	ErrDecode        = errors.New("decode failed")
	ErrClosed        = errors.New("connection closed")
)
