package message

import (
	"errors"
)

// Sentinel errors for frame handling.
var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
	ErrNilMessage  = errors.New("nil message")
)
