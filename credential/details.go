package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Details is the read-only projection rendered by token detail views.
type Details struct {
	TokenType    string         `json:"token_type"`
	AccessToken  string         `json:"access_token"`
	Scopes       []string       `json:"scopes,omitempty"`
	IDToken      string         `json:"id_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	Expiry       *time.Time     `json:"expiry,omitempty"`
	IDClaims     map[string]any `json:"id_token_claims,omitempty"`
}

// Describe builds the Details for c. ID token claims are decoded without signature
// verification and are for display only; an undecodable ID token leaves IDClaims nil.
func Describe(c *Credential) *Details {
	if c == nil {
		return nil
	}
	d := &Details{
		TokenType:    c.Token.TokenType,
		AccessToken:  c.Token.AccessToken,
		Scopes:       append([]string(nil), c.Token.Scope...),
		IDToken:      c.Token.IDToken,
		RefreshToken: c.Token.RefreshToken,
	}
	if d.TokenType == "" {
		d.TokenType = defaultTokenType
	}
	if !c.Token.Expiry.IsZero() {
		expiry := c.Token.Expiry
		d.Expiry = &expiry
	}
	if c.Token.IDToken != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(c.Token.IDToken, claims); err == nil {
			d.IDClaims = claims
		}
	}
	return d
}
