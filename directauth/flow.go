// Package directauth implements the credential provider for direct authentication:
// the client collects the user's password and exchanges it at the token endpoint
// (OAuth2 resource owner password grant), then refreshes, revokes and reads the
// userinfo of the resulting credential.
package directauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-signin/credential"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Config describes the authorization server and the client registered with it.
// When Issuer is set the endpoints are discovered; explicit URLs take precedence.
type Config struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	TokenURL      string
	RevocationURL string
	UserInfoURL   string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Flow talks to one authorization server on behalf of one client.
type Flow struct {
	oauth         *oauth2.Config
	provider      *oidc.Provider        // nil without discovery
	verifier      *oidc.IDTokenVerifier // nil without discovery
	revocationURL string
	userInfoURL   string
	userInfoOIDC  bool // userInfoURL is the discovered endpoint
	httpClient    *http.Client
	timeout       time.Duration
	logger        zerolog.Logger
	nowFunc       func() time.Time

	profiles     map[string]*credential.UserProfile // credential ID -> profile
	profilesLock sync.RWMutex
}

type Option func(*Flow)

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithNowFunc sets the clock used for issued-at stamps and ID token expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(f *Flow) {
		f.nowFunc = now
	}
}

// New builds a Flow, running OIDC discovery against cfg.Issuer when it is set.
func New(ctx context.Context, cfg Config, options ...Option) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("[directauth New] %w", ErrClientIDRequired)
	}
	if cfg.Issuer == "" && cfg.TokenURL == "" {
		return nil, fmt.Errorf("[directauth New] %w", ErrTokenEndpointRequired)
	}

	f := &Flow{
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		logger:     log.Logger,
		nowFunc:    time.Now,
		profiles:   make(map[string]*credential.UserProfile),
	}
	for _, opt := range options {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = http.DefaultClient
	}
	if f.timeout <= 0 {
		f.timeout = defaultTimeout
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}
	f.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
	}

	if cfg.Issuer != "" {
		if err := f.discover(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.TokenURL != "" {
		f.oauth.Endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.RevocationURL != "" {
		f.revocationURL = cfg.RevocationURL
	}
	if cfg.UserInfoURL != "" && cfg.UserInfoURL != f.userInfoURL {
		f.userInfoURL = cfg.UserInfoURL
		f.userInfoOIDC = false
	}
	// Public clients identify themselves in the form body.
	if cfg.ClientSecret == "" {
		f.oauth.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	f.logger.Debug().
		Str("client_id", cfg.ClientID).
		Str("token_url", f.oauth.Endpoint.TokenURL).
		Bool("revocation", f.revocationURL != "").
		Bool("userinfo", f.userInfoURL != "").
		Msg("direct authentication flow configured")
	return f, nil
}

// callContext bounds a provider call by the configured timeout and routes x/oauth2
// and go-oidc through the configured HTTP client.
func (f *Flow) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	ctx = oidc.ClientContext(ctx, f.httpClient)
	return context.WithTimeout(ctx, f.timeout)
}

// verifyIDToken checks an ID token against the discovered keys. Without discovery
// there is nothing to verify against and the token is kept as issued.
func (f *Flow) verifyIDToken(ctx context.Context, rawIDToken string) error {
	if f.verifier == nil || rawIDToken == "" {
		return nil
	}
	if _, err := f.verifier.Verify(ctx, rawIDToken); err != nil {
		return fmt.Errorf("ID token verification failed: %w", err)
	}
	return nil
}

// Scopes returns the scopes requested by the flow.
func (f *Flow) Scopes() []string {
	return append([]string(nil), f.oauth.Scopes...)
}
