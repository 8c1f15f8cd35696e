package directauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-signin/credential"
)

const maxErrorBody = 4 << 10

// Revoke invalidates the credential's refresh token and then its access token at the
// RFC 7009 revocation endpoint. Both are attempted; failures are joined.
func (f *Flow) Revoke(ctx context.Context, c *credential.Credential) error {
	if c == nil {
		return fmt.Errorf("[Flow.Revoke] %w", ErrNoCredential)
	}
	f.forgetProfile(c.ID)
	if f.revocationURL == "" {
		return fmt.Errorf("[Flow.Revoke] %w", ErrRevocationUnsupported)
	}

	ctx, cancel := f.callContext(ctx)
	defer cancel()

	var errs []error
	if c.Token.RefreshToken != "" {
		if err := f.revoke(ctx, c.Token.RefreshToken, "refresh_token"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Token.AccessToken != "" {
		if err := f.revoke(ctx, c.Token.AccessToken, "access_token"); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("[Flow.Revoke] %w", err)
	}
	f.logger.Info().Str("credential", c.ID).Msg("credential revoked")
	return nil
}

func (f *Flow) revoke(ctx context.Context, token, hint string) error {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
	}
	if f.oauth.ClientSecret == "" {
		form.Set("client_id", f.oauth.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("revoke %s: %w", hint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if f.oauth.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(f.oauth.ClientID), url.QueryEscape(f.oauth.ClientSecret))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", hint, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke %s: %s: %s", hint, resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
