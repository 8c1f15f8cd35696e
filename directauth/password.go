package directauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-signin/credential"
	"golang.org/x/oauth2"
)

// OAuth error codes that are answers rather than failures.
const (
	errorCodeMFARequired        = "mfa_required"
	errorCodeInvalidGrant       = "invalid_grant"
	errorCodeAccessDenied       = "access_denied"
	errorCodeUnauthorizedClient = "unauthorized_client"
	errorCodeInvalidScope       = "invalid_scope"
)

// AuthenticateWithPassword exchanges the user's password for a token bundle.
// Empty usernames and passwords are sent as-is; the server decides.
func (f *Flow) AuthenticateWithPassword(ctx context.Context, username, password string) (Status, error) {
	ctx, cancel := f.callContext(ctx)
	defer cancel()

	tok, err := f.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if status := statusFromRetrieveError(retrieveErr); status != nil {
				f.logger.Info().Str("status", string(status.Kind())).Str("code", retrieveErr.ErrorCode).Msg("password exchange not successful")
				return status, nil
			}
		}
		return nil, fmt.Errorf("[Flow.AuthenticateWithPassword] token exchange: %w", err)
	}

	t := credential.FromOAuth2(tok, f.nowFunc())
	if len(t.Scope) == 0 {
		// An omitted scope means the requested scope was granted.
		t.Scope = f.Scopes()
	}
	if err := f.verifyIDToken(ctx, t.IDToken); err != nil {
		return nil, fmt.Errorf("[Flow.AuthenticateWithPassword] %w", err)
	}
	f.logger.Info().Bool("refresh_token", t.HasRefreshToken()).Time("expiry", t.Expiry).Msg("password exchange succeeded")
	return Success{Token: t}, nil
}

func statusFromRetrieveError(err *oauth2.RetrieveError) Status {
	switch err.ErrorCode {
	case errorCodeMFARequired:
		var body struct {
			MFAToken string `json:"mfa_token"`
		}
		_ = json.Unmarshal(err.Body, &body)
		return MFARequired{MFAToken: body.MFAToken, Description: err.ErrorDescription}
	case errorCodeInvalidGrant, errorCodeAccessDenied, errorCodeUnauthorizedClient, errorCodeInvalidScope:
		return Denied{Code: err.ErrorCode, Description: err.ErrorDescription}
	}
	return nil
}
