// Package credential models the token bundle produced by a direct-authentication
// exchange, the user profile projected from it, and the slot that holds the
// process-wide current credential.
package credential

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-signin/internal/utils"
	"golang.org/x/oauth2"
)

const defaultTokenType = "Bearer"

// Token is the token bundle issued by the authorization server.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        []string  `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
}

// Credential is a stored Token with a stable identity. The ID survives refreshes.
type Credential struct {
	ID        string    `json:"id"`
	Token     Token     `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the access token is past its expiry. Tokens without an
// expiry never expire.
func (t Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !t.Expiry.After(now)
}

// Valid is true when the token carries an access token that has not expired.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && !t.Expired(now)
}

func (t Token) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// Clone returns a copy that shares no slices with t.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Token.Scope != nil {
		cp.Token.Scope = append([]string(nil), c.Token.Scope...)
	}
	return &cp
}

// FromOAuth2 converts an x/oauth2 token. The id_token and scope members of the
// token response are read from the token's extra fields.
func FromOAuth2(t *oauth2.Token, issuedAt time.Time) Token {
	if t == nil {
		return Token{}
	}
	tok := Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.Type(),
		Expiry:       t.Expiry,
		IssuedAt:     issuedAt,
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		tok.IDToken = idToken
	}
	if scope := t.Extra("scope"); scope != nil {
		tok.Scope = utils.ScopeList(scope)
	}
	return tok
}

// OAuth2 converts back to an x/oauth2 token, carrying the id_token as an extra field.
func (t Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	extra := map[string]any{}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	if len(t.Scope) > 0 {
		extra["scope"] = strings.Join(t.Scope, " ")
	}
	if len(extra) > 0 {
		tok = tok.WithExtra(extra)
	}
	return tok
}

// Merge returns next with any field the refresh response omitted carried over from t.
// Authorization servers may leave out the refresh token, the id token and the scope.
func (t Token) Merge(next Token) Token {
	if next.RefreshToken == "" {
		next.RefreshToken = t.RefreshToken
	}
	if next.IDToken == "" {
		next.IDToken = t.IDToken
	}
	if len(next.Scope) == 0 {
		next.Scope = t.Scope
	}
	if next.TokenType == "" {
		next.TokenType = t.TokenType
	}
	return next
}
