package session

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-signin/directauth"
)

const reasonAuthenticationFailed = "Authentication failed"

var (
	// ErrNoActiveCredential is returned by operations that need a session when there is none.
	ErrNoActiveCredential = errors.New("no active credential")
	// ErrUnexpectedResponse matches a well-formed provider answer that is not a success.
	ErrUnexpectedResponse = errors.New("unexpected response from credential provider")
)

// ProviderError is a network or protocol failure reported by the credential provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("credential provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UnexpectedResponseError carries the non-success status the provider answered with.
// It matches ErrUnexpectedResponse with errors.Is.
type UnexpectedResponseError struct {
	Status directauth.Status
}

func (e *UnexpectedResponseError) Error() string {
	switch status := e.Status.(type) {
	case nil:
		return ErrUnexpectedResponse.Error()
	case directauth.Denied:
		return fmt.Sprintf("%s: %s", ErrUnexpectedResponse, status)
	default:
		return fmt.Sprintf("%s: %s", ErrUnexpectedResponse, status.Kind())
	}
}

func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}
