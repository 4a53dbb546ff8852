package wire

import "errors"

// Sentinel kinds for codec errors.
var (
	// ErrMalformedPacket wraps every decode failure.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrInvalidPacket is returned by Encode for packets that cannot be serialized.
	ErrInvalidPacket = errors.New("invalid packet")

	errWireType   = errors.New("unexpected wire type")
	errInvalidUTF = errors.New("string field is not valid UTF-8")
)
