package notify

import "errors"

// ErrSend wraps transport failures of a side channel.
var ErrSend = errors.New("side channel send failed")
