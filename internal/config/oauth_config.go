package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetTokenURL() string
	GetRevocationURL() string
	GetUserInfoURL() string
	GetRequestTimeout() time.Duration
}

var _ OAuthConfig = (*EnvVars)(nil)

func (e *EnvVars) GetIssuer() string {
	return strings.TrimRight(e.Issuer, "/")
}

func (e *EnvVars) GetClientID() string {
	return e.ClientID
}

func (e *EnvVars) GetClientSecret() string {
	return e.ClientSecret
}

// GetScopes splits SIGNIN_SCOPES on spaces or commas.
func (e *EnvVars) GetScopes() []string {
	return strings.FieldsFunc(e.Scopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

func (e *EnvVars) GetTokenURL() string {
	return e.TokenURL
}

func (e *EnvVars) GetRevocationURL() string {
	return e.RevocationURL
}

func (e *EnvVars) GetUserInfoURL() string {
	return e.UserInfoURL
}

func (e *EnvVars) GetRequestTimeout() time.Duration {
	if e.Timeout <= 0 {
		return 30 * time.Second
	}
	return e.Timeout
}
