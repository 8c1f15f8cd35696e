package directauth

import "github.com/jrsteele09/go-signin/credential"

// StatusKind names the outcome of a direct authentication attempt.
type StatusKind string

const (
	StatusSuccess     StatusKind = "success"
	StatusMFARequired StatusKind = "mfa_required"
	StatusDenied      StatusKind = "denied"
)

// Status is the well-formed result of a password exchange. Transport or protocol
// failures are returned as errors instead.
type Status interface {
	Kind() StatusKind
}

// Success carries the issued token bundle.
type Success struct {
	Token credential.Token
}

func (Success) Kind() StatusKind { return StatusSuccess }

// MFARequired is returned when the server wants a second factor before issuing tokens.
// Continuing the exchange with the MFA token is not supported by this client.
type MFARequired struct {
	MFAToken    string
	Description string
}

func (MFARequired) Kind() StatusKind { return StatusMFARequired }

// Denied is an OAuth error response rejecting the credentials or the client.
type Denied struct {
	Code        string
	Description string
}

func (Denied) Kind() StatusKind { return StatusDenied }

func (d Denied) String() string {
	if d.Description != "" {
		return d.Code + ": " + d.Description
	}
	return d.Code
}
