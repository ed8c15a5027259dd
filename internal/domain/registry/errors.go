package registry

import (
	"errors"
)

// Sentinel errors.
var (
	ErrNilConn         = errors.New("nil connection")
	ErrInvalidKey      = errors.New("invalid connection key")
	ErrDeliveryFailure = errors.New("delivery failure")
)
