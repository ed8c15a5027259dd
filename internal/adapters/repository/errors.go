package repository

import "errors"

// Sentinel errors shared by the ledger and the SQL stores.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateID   = errors.New("duplicate id")
	ErrInvalidRecord = errors.New("invalid record")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUnknownDriver = errors.New("unknown database driver")
)
