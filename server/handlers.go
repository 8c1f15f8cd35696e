package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-signin/session"
	"github.com/jrsteele09/go-signin/signin"
)

const (
	contentTypeJSON  = "application/json; charset=utf-8"
	maxLoginBodySize = 64 << 10
)

type sessionResponse struct {
	State         session.Kind `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	Authenticated bool         `json:"authenticated"`
	Token         string       `json:"token,omitempty"`
	Username      string       `json:"username,omitempty"`
	Busy          bool         `json:"busy"`
	Error         string       `json:"error,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) sessionResponse() sessionResponse {
	state := s.model.State()
	resp := sessionResponse{
		State:         state.Kind,
		Reason:        state.Reason,
		Authenticated: s.model.IsAuthenticated(),
		Username:      s.model.Username(),
		Busy:          s.model.Busy(),
		Error:         s.model.ErrorMessage(),
	}
	if token, ok := s.manager.CurrentToken(); ok {
		resp.Token = token
	}
	return resp
}

// SessionHandler reports the current session state.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

// LoginHandler signs in with a JSON or form encoded username and password.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseLoginRequest(w, r)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			writeJSONError(w, "username and password are required", http.StatusBadRequest)
			return
		}

		if err := s.model.Submit(r.Context(), req.Username, req.Password); err != nil {
			s.writeOperationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.model.Logout(r.Context()); err != nil {
			s.writeOperationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.model.RefreshToken(r.Context()); err != nil {
			s.writeOperationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

// UserInfoHandler returns the profile of the signed-in user.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.model.FetchUserProfile(r.Context())
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		if profile == nil {
			writeJSONError(w, "not signed in", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// TokenHandler returns the details of the current credential.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details := s.model.TokenDetails()
		if details == nil {
			writeJSONError(w, "not signed in", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

// writeOperationError maps session and model errors onto HTTP statuses.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	var providerErr *session.ProviderError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, signin.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoActiveCredential):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnexpectedResponse):
		status = http.StatusUnauthorized
	case errors.As(err, &providerErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("sign-in operation failed")
	}

	resp := s.sessionResponse()
	if resp.Error == "" {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
