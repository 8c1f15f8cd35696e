// Package errors holds the sentinel errors shared by the credential stores.
package errors

import "errors"

var (
	// Storage errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidID      = errors.New("invalid credential id")
	ErrStoreCorrupted = errors.New("credential store corrupted")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
)
