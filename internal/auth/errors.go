// Package auth handles passwords, access tokens and request validation.
package auth

import "errors"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidHash        = errors.New("invalid password hash")
	ErrValidation         = errors.New("validation failed")
)
