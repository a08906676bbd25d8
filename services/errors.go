package services

import (
	"errors"

	"github.com/cppla/novelhub/store"
)

var (
	// ErrUnauthorized rejects a sweep whose credential does not match the configured secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks a request missing a required identifier.
	ErrValidation = errors.New("validation failed")

	ErrNotFound         = store.ErrNotFound
	ErrConflict         = store.ErrConflict
	ErrStoreUnavailable = store.ErrUnavailable
)
