// Package idptest runs an in-process OpenID Connect authorization server that supports
// the resource owner password grant, refresh, RFC 7009 revocation and userinfo.
// It exists so the direct authentication client can be tested over real HTTP.
package idptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RouteDiscovery  = "/.well-known/openid-configuration"
	RouteJWKS       = "/.well-known/jwks.json"
	RouteToken      = "/oauth2/token"
	RouteRevoke     = "/oauth2/revoke"
	RouteUserInfo   = "/userinfo"
	DefaultClientID = "signin-cli"
)

// User is an account the server accepts password grants for.
type User struct {
	Username      string
	Password      string
	Subject       string
	Name          string
	Email         string
	EmailVerified bool
	UpdatedAt     time.Time
	// RequireMFA makes password grants answer mfa_required.
	RequireMFA bool

	passwordHash string
}

type grant struct {
	subject  string
	scope    []string
	clientID string
}

// Server is a running test authorization server.
type Server struct {
	*httptest.Server

	clientID       string
	clientSecret   string
	accessTTL      time.Duration
	rotateRefresh  bool
	withRevocation bool
	nowFunc        func() time.Time
	keys           *keyPair

	mu            sync.Mutex
	users         map[string]*User
	accessTokens  map[string]grant
	refreshTokens map[string]grant
	revoked       map[string]bool
	failures      map[string][]int // route -> queued status codes
	hits          map[string]int
}

type Option func(*Server)

// WithClient registers a confidential client. Without it the server accepts the
// public client DefaultClientID.
func WithClient(clientID, clientSecret string) Option {
	return func(s *Server) {
		s.clientID = clientID
		s.clientSecret = clientSecret
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithRefreshRotation issues a new refresh token on every refresh grant.
func WithRefreshRotation() Option {
	return func(s *Server) {
		s.rotateRefresh = true
	}
}

// WithoutRevocation leaves revocation_endpoint out of the discovery document.
func WithoutRevocation() Option {
	return func(s *Server) {
		s.withRevocation = false
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// New starts a server and stops it when the test ends.
func New(t testing.TB, options ...Option) *Server {
	t.Helper()

	keys, err := generateKeyPair(uuid.NewString())
	if err != nil {
		t.Fatalf("idptest: %v", err)
	}
	s := &Server{
		clientID:       DefaultClientID,
		accessTTL:      time.Hour,
		withRevocation: true,
		nowFunc:        time.Now,
		keys:           keys,
		users:          make(map[string]*User),
		accessTokens:   make(map[string]grant),
		refreshTokens:  make(map[string]grant),
		revoked:        make(map[string]bool),
		failures:       make(map[string][]int),
		hits:           make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RouteDiscovery, s.track(RouteDiscovery, s.discovery))
	mux.HandleFunc("GET "+RouteJWKS, s.track(RouteJWKS, s.jwks))
	mux.HandleFunc("POST "+RouteToken, s.track(RouteToken, s.token))
	mux.HandleFunc("POST "+RouteRevoke, s.track(RouteRevoke, s.revoke))
	mux.HandleFunc("GET "+RouteUserInfo, s.track(RouteUserInfo, s.userInfo))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Issuer is the issuer identifier, which is also the discovery base URL.
func (s *Server) Issuer() string {
	return s.URL
}

func (s *Server) ClientID() string {
	return s.clientID
}

func (s *Server) ClientSecret() string {
	return s.clientSecret
}

// AddUser registers u. Subject defaults to a uuid.
func (s *Server) AddUser(t testing.TB, u User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("idptest: hash password: %v", err)
	}
	u.passwordHash = string(hash)
	u.Password = ""
	if u.Subject == "" {
		u.Subject = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = &u
}

// FailNext makes the next request to route answer with status.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Hits is the number of requests route has received.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Revoked reports whether token was revoked through the revocation endpoint.
func (s *Server) Revoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

// ExpireAccessTokens invalidates every issued access token, as if they had expired.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]grant)
}

func (s *Server) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		var status int
		if queued := s.failures[route]; len(queued) > 0 {
			status, s.failures[route] = queued[0], queued[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSONError(w, "server_error", "injected failure", status)
			return
		}
		next(w, r)
	}
}

func (s *Server) checkPassword(username, password string) (*User, bool) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

func (s *Server) userBySubject(subject string) *User {
	for _, u := range s.users {
		if u.Subject == subject {
			return u
		}
	}
	return nil
}

func hasScope(scope []string, want string) bool {
	for _, sc := range scope {
		if sc == want {
			return true
		}
	}
	return false
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}
