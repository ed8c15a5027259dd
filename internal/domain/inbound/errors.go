package inbound

import "errors"

// ErrRelay wraps failures to relay an acknowledgement.
var ErrRelay = errors.New("relay emergency response")
