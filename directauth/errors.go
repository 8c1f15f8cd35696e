package directauth

import "errors"

var (
	ErrTokenEndpointRequired = errors.New("token endpoint or issuer is required")
	ErrClientIDRequired      = errors.New("client id is required")
	ErrNoCredential          = errors.New("no credential")
	ErrNoRefreshToken        = errors.New("credential has no refresh token")
	ErrRevocationUnsupported = errors.New("authorization server has no revocation endpoint")
	ErrUserInfoUnsupported   = errors.New("authorization server has no userinfo endpoint")
)
