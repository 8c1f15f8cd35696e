package directauth

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-signin/credential"
	"golang.org/x/oauth2"
)

// Refresh exchanges the credential's refresh token for a new token bundle. Fields the
// server leaves out of the response (rotation is optional) are carried over.
func (f *Flow) Refresh(ctx context.Context, c *credential.Credential) (credential.Token, error) {
	if c == nil {
		return credential.Token{}, fmt.Errorf("[Flow.Refresh] %w", ErrNoCredential)
	}
	if !c.Token.HasRefreshToken() {
		return credential.Token{}, fmt.Errorf("[Flow.Refresh] %w", ErrNoRefreshToken)
	}

	ctx, cancel := f.callContext(ctx)
	defer cancel()

	// An empty access token forces the token source to hit the token endpoint.
	src := f.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.Token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return credential.Token{}, fmt.Errorf("[Flow.Refresh] token refresh: %w", err)
	}

	next := c.Token.Merge(credential.FromOAuth2(tok, f.nowFunc()))
	if next.IDToken != c.Token.IDToken {
		if err := f.verifyIDToken(ctx, next.IDToken); err != nil {
			return credential.Token{}, fmt.Errorf("[Flow.Refresh] %w", err)
		}
	}
	f.forgetProfile(c.ID)
	f.logger.Info().Str("credential", c.ID).Bool("rotated", next.RefreshToken != c.Token.RefreshToken).Msg("token refreshed")
	return next, nil
}
