package idptest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const contentTypeJSON = "application/json; charset=utf-8"

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (s *Server) discovery(w http.ResponseWriter, r *http.Request) {
	issuer := s.Issuer()
	resp := map[string]any{
		"issuer":                                issuer,
		"token_endpoint":                        issuer + RouteToken,
		"userinfo_endpoint":                     issuer + RouteUserInfo,
		"jwks_uri":                              issuer + RouteJWKS,
		"response_types_supported":              []string{"token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"grant_types_supported":                 []string{"password", "refresh_token"},
		"scopes_supported":                      []string{"openid", "profile", "email", "offline_access"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
	}
	if s.withRevocation {
		resp["revocation_endpoint"] = issuer + RouteRevoke
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.keys.jwks())
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}
	clientID, ok := s.authenticateClient(r)
	if !ok {
		writeJSONError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.passwordGrant(w, r, clientID)
	case "refresh_token":
		s.refreshGrant(w, r, clientID)
	default:
		writeJSONError(w, "unsupported_grant_type", "Only password and refresh_token grants are supported", http.StatusBadRequest)
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request, clientID string) {
	u, ok := s.checkPassword(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if !ok {
		writeJSONError(w, "invalid_grant", "Invalid username or password", http.StatusBadRequest)
		return
	}
	if u.RequireMFA {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":             "mfa_required",
			"error_description": "Multifactor authentication required",
			"mfa_token":         uuid.NewString(),
		})
		return
	}

	scope := splitScope(r.PostForm.Get("scope"))
	if len(scope) == 0 {
		scope = []string{"openid"}
	}
	g := grant{subject: u.Subject, scope: scope, clientID: clientID}

	s.mu.Lock()
	resp, err := s.issue(g, u, hasScope(scope, "offline_access"))
	s.mu.Unlock()
	if err != nil {
		writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}
	writeToken(w, resp)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request, clientID string) {
	refreshToken := r.PostForm.Get("refresh_token")

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.refreshTokens[refreshToken]
	if !ok || s.revoked[refreshToken] || g.clientID != clientID {
		writeJSONError(w, "invalid_grant", "Refresh token is invalid or expired", http.StatusBadRequest)
		return
	}
	resp, err := s.issue(g, s.userBySubject(g.subject), s.rotateRefresh)
	if err != nil {
		writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}
	if s.rotateRefresh {
		delete(s.refreshTokens, refreshToken)
	}
	writeToken(w, resp)
}

// issue mints tokens for g. Callers hold s.mu.
func (s *Server) issue(g grant, u *User, withRefresh bool) (*tokenResponse, error) {
	resp := &tokenResponse{
		AccessToken: uuid.NewString(),
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		Scope:       strings.Join(g.scope, " "),
	}
	s.accessTokens[resp.AccessToken] = g

	if withRefresh {
		resp.RefreshToken = uuid.NewString()
		s.refreshTokens[resp.RefreshToken] = g
	}
	if hasScope(g.scope, "openid") && u != nil {
		idToken, err := s.idToken(g, u)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}
	return resp, nil
}

func (s *Server) idToken(g grant, u *User) (string, error) {
	now := s.nowFunc()
	claims := jwt.MapClaims{
		"iss": s.Issuer(),
		"sub": u.Subject,
		"aud": g.clientID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"jti": uuid.NewString(),
	}
	if hasScope(g.scope, "email") {
		claims["email"] = u.Email
		claims["email_verified"] = u.EmailVerified
	}
	if hasScope(g.scope, "profile") {
		claims["name"] = u.Name
		claims["preferred_username"] = u.Username
	}
	return s.keys.sign(claims)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}
	if _, ok := s.authenticateClient(r); !ok {
		writeJSONError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
		return
	}
	token := r.PostForm.Get("token")
	if token == "" {
		writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.revoked[token] = true
	delete(s.accessTokens, token)
	delete(s.refreshTokens, token)
	s.mu.Unlock()

	// Unknown tokens are not an error.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	scheme, accessToken, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		writeJSONError(w, "invalid_token", "Missing or malformed Authorization header", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	g, ok := s.accessTokens[accessToken]
	u := s.userBySubject(g.subject)
	s.mu.Unlock()
	if !ok || u == nil {
		writeJSONError(w, "invalid_token", "Access token is invalid or expired", http.StatusUnauthorized)
		return
	}

	claims := map[string]any{
		"sub":                u.Subject,
		"name":               u.Name,
		"email":              u.Email,
		"email_verified":     u.EmailVerified,
		"preferred_username": u.Username,
	}
	if !u.UpdatedAt.IsZero() {
		claims["updated_at"] = u.UpdatedAt.Unix()
	}
	writeJSON(w, http.StatusOK, claims)
}

// authenticateClient accepts client_secret_basic, client_secret_post and public clients.
func (s *Server) authenticateClient(r *http.Request) (string, bool) {
	clientID, secret, ok := r.BasicAuth()
	if ok {
		clientID, _ = url.QueryUnescape(clientID)
		secret, _ = url.QueryUnescape(secret)
	} else {
		clientID = r.PostForm.Get("client_id")
		secret = r.PostForm.Get("client_secret")
	}
	if clientID != s.clientID {
		return "", false
	}
	if s.clientSecret != "" && secret != s.clientSecret {
		return "", false
	}
	return clientID, true
}

func writeToken(w http.ResponseWriter, resp *tokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
