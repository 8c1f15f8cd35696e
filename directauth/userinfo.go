package directauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/internal/utils"
	"golang.org/x/oauth2"
)

// CachedUserProfile returns the profile fetched earlier for c, or nil.
func (f *Flow) CachedUserProfile(c *credential.Credential) *credential.UserProfile {
	if c == nil {
		return nil
	}
	f.profilesLock.RLock()
	defer f.profilesLock.RUnlock()
	if p, ok := f.profiles[c.ID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// FetchUserProfile reads the userinfo endpoint with c's access token and caches the result.
func (f *Flow) FetchUserProfile(ctx context.Context, c *credential.Credential) (*credential.UserProfile, error) {
	if c == nil {
		return nil, fmt.Errorf("[Flow.FetchUserProfile] %w", ErrNoCredential)
	}

	ctx, cancel := f.callContext(ctx)
	defer cancel()

	claims, err := f.userInfoClaims(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("[Flow.FetchUserProfile] %w", err)
	}
	profile := profileFromClaims(claims)

	f.profilesLock.Lock()
	f.profiles[c.ID] = profile
	f.profilesLock.Unlock()

	cp := *profile
	return &cp, nil
}

func (f *Flow) userInfoClaims(ctx context.Context, c *credential.Credential) (map[string]any, error) {
	claims := map[string]any{}
	switch {
	case f.userInfoOIDC:
		info, err := f.provider.UserInfo(ctx, oauth2.StaticTokenSource(c.Token.OAuth2()))
		if err != nil {
			return nil, err
		}
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("decode userinfo claims: %w", err)
		}
	case f.userInfoURL != "":
		if err := f.getUserInfo(ctx, c.Token.AccessToken, &claims); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUserInfoUnsupported
	}
	return claims, nil
}

// getUserInfo is used when the userinfo endpoint is configured without discovery.
func (f *Flow) getUserInfo(ctx context.Context, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("userinfo: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode userinfo: %w", err)
	}
	return nil
}

func (f *Flow) forgetProfile(credentialID string) {
	f.profilesLock.Lock()
	delete(f.profiles, credentialID)
	f.profilesLock.Unlock()
}

func profileFromClaims(claims map[string]any) *credential.UserProfile {
	p := &credential.UserProfile{}
	p.Subject, _ = claims["sub"].(string)
	p.Name, _ = claims["name"].(string)
	p.Email, _ = claims["email"].(string)
	p.PreferredUsername, _ = claims["preferred_username"].(string)

	// Some servers send email_verified as a string.
	switch v := claims["email_verified"].(type) {
	case bool:
		p.EmailVerified = v
	case string:
		p.EmailVerified = strings.EqualFold(v, "true")
	}
	if updated, ok := claims["updated_at"].(float64); ok {
		p.UpdatedAt = utils.UnixPtr(int64(updated))
	}
	return p
}
