package dispatch

import "errors"

// ErrInvalidRecord is returned by Raise for records that cannot be alerted.
var ErrInvalidRecord = errors.New("invalid emergency record")
