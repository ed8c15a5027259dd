package service

import "errors"

// Sentinel errors for the service layer.
var (
	ErrStart      = errors.New("service start failed")
	ErrNotStarted = errors.New("service not started")
)
