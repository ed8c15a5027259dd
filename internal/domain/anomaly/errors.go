package anomaly

import "errors"

// ErrInvalidReading marks readings that cannot come from a body.
var ErrInvalidReading = errors.New("invalid reading")
