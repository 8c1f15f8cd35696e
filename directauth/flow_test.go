package directauth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/directauth"
	"github.com/jrsteele09/go-signin/internal/idptest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type testFixture struct {
	idp  *idptest.Server
	flow *directauth.Flow
}

func setupTestFixture(t *testing.T, idpOptions ...idptest.Option) *testFixture {
	t.Helper()
	idp := idptest.New(t, idpOptions...)
	idp.AddUser(t, idptest.User{
		Username:      "alice",
		Password:      "correct",
		Subject:       "user-alice",
		Name:          "Alice Example",
		Email:         "alice@example.com",
		EmailVerified: true,
		UpdatedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	idp.AddUser(t, idptest.User{Username: "bob", Password: "secret", RequireMFA: true})

	flow, err := directauth.New(context.Background(), directauth.Config{
		Issuer:       idp.Issuer(),
		ClientID:     idp.ClientID(),
		ClientSecret: idp.ClientSecret(),
	}, directauth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return &testFixture{idp: idp, flow: flow}
}

func (f *testFixture) login(t *testing.T) *credential.Credential {
	t.Helper()
	status, err := f.flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.NoError(t, err)
	success, ok := status.(directauth.Success)
	require.True(t, ok, "expected success, got %v", status)
	return &credential.Credential{ID: "cred-1", Token: success.Token}
}

func TestNew_Validation(t *testing.T) {
	_, err := directauth.New(context.Background(), directauth.Config{TokenURL: "http://localhost/token"})
	require.ErrorIs(t, err, directauth.ErrClientIDRequired)

	_, err = directauth.New(context.Background(), directauth.Config{ClientID: "c"})
	require.ErrorIs(t, err, directauth.ErrTokenEndpointRequired)
}

func TestNew_DiscoveryFailure(t *testing.T) {
	idp := idptest.New(t)
	idp.FailNext(idptest.RouteDiscovery, http.StatusInternalServerError)

	_, err := directauth.New(context.Background(), directauth.Config{Issuer: idp.Issuer(), ClientID: idp.ClientID()})
	require.Error(t, err)
}

func TestNew_DiscoveryTimeout(t *testing.T) {
	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(hanging.Close)

	start := time.Now()
	_, err := directauth.New(context.Background(), directauth.Config{
		Issuer:   hanging.URL,
		ClientID: "signin-cli",
		Timeout:  200 * time.Millisecond,
	}, directauth.WithLogger(zerolog.Nop()))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNew_DiscoveryHonoursCallerContext(t *testing.T) {
	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(hanging.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := directauth.New(ctx, directauth.Config{Issuer: hanging.URL, ClientID: "signin-cli"}, directauth.WithLogger(zerolog.Nop()))
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNew_DiscoveryIssuerMismatch(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"https://elsewhere.example.com","token_endpoint":"https://elsewhere.example.com/token"}`))
	}))
	t.Cleanup(other.Close)

	_, err := directauth.New(context.Background(), directauth.Config{Issuer: other.URL, ClientID: "signin-cli"}, directauth.WithLogger(zerolog.Nop()))
	require.ErrorContains(t, err, "issuer did not match")
}

// Keys are fetched after New returns, so the provider must not inherit a cancelled context.
func TestNew_VerifiesAfterCallerContextEnds(t *testing.T) {
	idp := idptest.New(t)
	idp.AddUser(t, idptest.User{Username: "alice", Password: "correct"})

	ctx, cancel := context.WithCancel(context.Background())
	flow, err := directauth.New(ctx, directauth.Config{Issuer: idp.Issuer(), ClientID: idp.ClientID()}, directauth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cancel()

	status, err := flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.NoError(t, err)
	require.IsType(t, directauth.Success{}, status)
}

func TestNew_DefaultScopes(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, f.flow.Scopes())
}

func TestAuthenticateWithPassword_Success(t *testing.T) {
	f := setupTestFixture(t)

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.NoError(t, err)
	require.Equal(t, directauth.StatusSuccess, status.Kind())

	tok := status.(directauth.Success).Token
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)
	require.NotEmpty(t, tok.IDToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.ElementsMatch(t, []string{"openid", "profile", "email", "offline_access"}, tok.Scope)
	require.False(t, tok.Expiry.IsZero())
	require.False(t, tok.IssuedAt.IsZero())
}

func TestAuthenticateWithPassword_ConfidentialClient(t *testing.T) {
	f := setupTestFixture(t, idptest.WithClient("signin-web", "s3cr3t"))

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.NoError(t, err)
	require.Equal(t, directauth.StatusSuccess, status.Kind())
}

func TestAuthenticateWithPassword_WrongPasswordIsDenied(t *testing.T) {
	f := setupTestFixture(t)

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "alice", "wrong")
	require.NoError(t, err)
	denied, ok := status.(directauth.Denied)
	require.True(t, ok)
	require.Equal(t, "invalid_grant", denied.Code)
	require.Contains(t, denied.String(), "invalid_grant")
}

func TestAuthenticateWithPassword_EmptyCredentialsAreDelegated(t *testing.T) {
	f := setupTestFixture(t)

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "", "")
	require.NoError(t, err)
	require.Equal(t, directauth.StatusDenied, status.Kind())
	require.Equal(t, 1, f.idp.Hits(idptest.RouteToken))
}

func TestAuthenticateWithPassword_MFARequired(t *testing.T) {
	f := setupTestFixture(t)

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "bob", "secret")
	require.NoError(t, err)
	mfa, ok := status.(directauth.MFARequired)
	require.True(t, ok)
	require.NotEmpty(t, mfa.MFAToken)
	require.NotEmpty(t, mfa.Description)
}

func TestAuthenticateWithPassword_ServerErrorIsAnError(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.FailNext(idptest.RouteToken, http.StatusInternalServerError)

	status, err := f.flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.Error(t, err)
	require.Nil(t, status)

	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	require.Equal(t, "server_error", retrieveErr.ErrorCode)
}

func TestAuthenticateWithPassword_CancelledContext(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.flow.AuthenticateWithPassword(ctx, "alice", "correct")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAuthenticateWithPassword_RejectsForeignIDToken(t *testing.T) {
	f := setupTestFixture(t)
	other := idptest.New(t)
	other.AddUser(t, idptest.User{Username: "alice", Password: "correct"})

	// Token endpoint of one issuer, verifier of another.
	flow, err := directauth.New(context.Background(), directauth.Config{
		Issuer:   f.idp.Issuer(),
		ClientID: f.idp.ClientID(),
		TokenURL: other.URL + idptest.RouteToken,
	}, directauth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ID token verification failed")
}

func TestAuthenticateWithPassword_WithoutDiscovery(t *testing.T) {
	idp := idptest.New(t)
	idp.AddUser(t, idptest.User{Username: "alice", Password: "correct", Name: "Alice"})

	flow, err := directauth.New(context.Background(), directauth.Config{
		ClientID:    idp.ClientID(),
		TokenURL:    idp.URL + idptest.RouteToken,
		UserInfoURL: idp.URL + idptest.RouteUserInfo,
		Scopes:      []string{"openid", "profile"},
	}, directauth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	status, err := flow.AuthenticateWithPassword(context.Background(), "alice", "correct")
	require.NoError(t, err)
	c := &credential.Credential{ID: "c", Token: status.(directauth.Success).Token}
	require.Empty(t, c.Token.RefreshToken)

	profile, err := flow.FetchUserProfile(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "Alice", profile.Name)

	require.ErrorIs(t, flow.Revoke(context.Background(), c), directauth.ErrRevocationUnsupported)
}

func TestRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)

	next, err := f.flow.Refresh(context.Background(), c)
	require.NoError(t, err)
	require.NotEqual(t, c.Token.AccessToken, next.AccessToken)
	require.Equal(t, c.Token.RefreshToken, next.RefreshToken)
	require.NotEmpty(t, next.IDToken)
	require.NotEmpty(t, next.Scope)
}

func TestRefresh_Rotation(t *testing.T) {
	f := setupTestFixture(t, idptest.WithRefreshRotation())
	c := f.login(t)

	next, err := f.flow.Refresh(context.Background(), c)
	require.NoError(t, err)
	require.NotEqual(t, c.Token.RefreshToken, next.RefreshToken)

	// The old refresh token is spent.
	_, err = f.flow.Refresh(context.Background(), c)
	require.Error(t, err)
}

func TestRefresh_Errors(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.flow.Refresh(context.Background(), nil)
	require.ErrorIs(t, err, directauth.ErrNoCredential)

	_, err = f.flow.Refresh(context.Background(), &credential.Credential{Token: credential.Token{AccessToken: "a"}})
	require.ErrorIs(t, err, directauth.ErrNoRefreshToken)

	_, err = f.flow.Refresh(context.Background(), &credential.Credential{Token: credential.Token{AccessToken: "a", RefreshToken: "unknown"}})
	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	require.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
}

func TestRevoke(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)

	require.NoError(t, f.flow.Revoke(context.Background(), c))
	require.True(t, f.idp.Revoked(c.Token.RefreshToken))
	require.True(t, f.idp.Revoked(c.Token.AccessToken))
	require.Equal(t, 2, f.idp.Hits(idptest.RouteRevoke))

	_, err := f.flow.Refresh(context.Background(), c)
	require.Error(t, err)
}

func TestRevoke_ConfidentialClient(t *testing.T) {
	f := setupTestFixture(t, idptest.WithClient("signin-web", "s3cr3t"))
	c := f.login(t)

	require.NoError(t, f.flow.Revoke(context.Background(), c))
	require.True(t, f.idp.Revoked(c.Token.AccessToken))
}

func TestRevoke_AttemptsBothTokens(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)
	f.idp.FailNext(idptest.RouteRevoke, http.StatusServiceUnavailable)

	err := f.flow.Revoke(context.Background(), c)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "refresh_token"))
	require.True(t, f.idp.Revoked(c.Token.AccessToken))
}

func TestRevoke_NoEndpoint(t *testing.T) {
	f := setupTestFixture(t, idptest.WithoutRevocation())
	c := f.login(t)

	require.ErrorIs(t, f.flow.Revoke(context.Background(), c), directauth.ErrRevocationUnsupported)
	require.ErrorIs(t, f.flow.Revoke(context.Background(), nil), directauth.ErrNoCredential)
}

func TestFetchUserProfile_CachesByCredential(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)

	require.Nil(t, f.flow.CachedUserProfile(c))

	profile, err := f.flow.FetchUserProfile(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "user-alice", profile.Subject)
	require.Equal(t, "Alice Example", profile.Name)
	require.Equal(t, "alice@example.com", profile.Email)
	require.True(t, profile.EmailVerified)
	require.Equal(t, "alice", profile.PreferredUsername)
	require.NotNil(t, profile.UpdatedAt)
	require.True(t, profile.UpdatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	cached := f.flow.CachedUserProfile(c)
	require.Equal(t, profile, cached)
	require.Equal(t, 1, f.idp.Hits(idptest.RouteUserInfo))
}

func TestFetchUserProfile_RefreshForgetsCache(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)

	_, err := f.flow.FetchUserProfile(context.Background(), c)
	require.NoError(t, err)

	next, err := f.flow.Refresh(context.Background(), c)
	require.NoError(t, err)
	require.Nil(t, f.flow.CachedUserProfile(c))

	c.Token = next
	_, err = f.flow.FetchUserProfile(context.Background(), c)
	require.NoError(t, err)
}

func TestFetchUserProfile_InvalidToken(t *testing.T) {
	f := setupTestFixture(t)
	c := f.login(t)
	f.idp.ExpireAccessTokens()

	_, err := f.flow.FetchUserProfile(context.Background(), c)
	require.Error(t, err)
	require.Nil(t, f.flow.CachedUserProfile(c))

	_, err = f.flow.FetchUserProfile(context.Background(), nil)
	require.ErrorIs(t, err, directauth.ErrNoCredential)
}
