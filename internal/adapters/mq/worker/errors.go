package worker

import "errors"

// Sentinel errors.
var (
	ErrNilJob          = errors.New("job has no run function")
	ErrJobPanicked     = errors.New("job panicked")
	ErrShutdownTimeout = errors.New("worker shutdown timed out")
)
