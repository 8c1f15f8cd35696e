// Package signin holds the sign-in form state shared by presentation layers: the
// entered credentials, the busy flag that keeps one operation in flight, and the
// message shown for the last failure.
package signin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/session"
)

const noToken = "No Token"

// ErrBusy is returned when an operation is started while another one is in flight.
var ErrBusy = errors.New("another sign-in operation is in progress")

// Model drives a session.Manager from a sign-in form.
type Model struct {
	manager *session.Manager

	lock         sync.RWMutex
	username     string
	password     string
	busy         bool
	errorMessage string
}

func NewModel(manager *session.Manager) *Model {
	return &Model{manager: manager}
}

func (m *Model) SetUsername(username string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.username = username
}

func (m *Model) SetPassword(password string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.password = password
}

func (m *Model) Username() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.username
}

// CanSubmit is true when both fields are filled in and nothing is in flight.
func (m *Model) CanSubmit() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return strings.TrimSpace(m.username) != "" && m.password != "" && !m.busy
}

func (m *Model) Busy() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.busy
}

// ErrorMessage is the message for the last failed operation, or "".
func (m *Model) ErrorMessage() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.errorMessage
}

func (m *Model) State() session.State {
	return m.manager.State()
}

func (m *Model) IsAuthenticated() bool {
	return m.manager.IsAuthenticated()
}

// Token is the current access token, or "No Token".
func (m *Model) Token() string {
	if token, ok := m.manager.CurrentToken(); ok {
		return token
	}
	return noToken
}

// TokenDetails describes the current credential, or returns nil when signed out.
func (m *Model) TokenDetails() *credential.Details {
	return credential.Describe(m.manager.Credential())
}

// Login signs in with the entered username and password. The password is cleared
// once the session is established.
func (m *Model) Login(ctx context.Context) error {
	return m.login(ctx, nil)
}

// Submit fills in the form and signs in, unless another operation is in flight.
func (m *Model) Submit(ctx context.Context, username, password string) error {
	return m.login(ctx, func() {
		m.username = username
		m.password = password
	})
}

func (m *Model) login(ctx context.Context, fill func()) error {
	m.lock.Lock()
	if m.busy {
		m.lock.Unlock()
		return ErrBusy
	}
	if fill != nil {
		fill()
	}
	m.busy = true
	m.errorMessage = ""
	username, password := strings.TrimSpace(m.username), m.password
	m.lock.Unlock()

	err := m.manager.Authenticate(ctx, username, password)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.busy = false
	if err != nil {
		// Show what the session reports, as observers of the state would.
		m.errorMessage = m.manager.State().Reason
		if m.errorMessage == "" {
			m.errorMessage = err.Error()
		}
		return err
	}
	m.password = ""
	return nil
}

// Logout ends the session and clears the form.
func (m *Model) Logout(ctx context.Context) error {
	if !m.begin() {
		return ErrBusy
	}
	err := m.manager.Logout(ctx)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.busy = false
	m.username = ""
	m.password = ""
	m.errorMessage = ""
	return err
}

// RefreshToken refreshes the access token of the current session.
func (m *Model) RefreshToken(ctx context.Context) error {
	if !m.begin() {
		return ErrBusy
	}
	err := m.manager.RefreshAccessToken(ctx)
	m.end(err, "Token refresh failed: ")
	return err
}

// FetchUserProfile returns the signed-in user's profile, nil when signed out.
func (m *Model) FetchUserProfile(ctx context.Context) (*credential.UserProfile, error) {
	if !m.begin() {
		return nil, ErrBusy
	}
	profile, err := m.manager.CurrentUser(ctx)
	m.end(err, "Failed to fetch user profile: ")
	return profile, err
}

func (m *Model) begin() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.busy {
		return false
	}
	m.busy = true
	m.errorMessage = ""
	return true
}

func (m *Model) end(err error, prefix string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.busy = false
	if err != nil {
		m.errorMessage = prefix + cause(err)
	}
}

// cause strips the session wrapper so messages show what the provider reported.
func cause(err error) string {
	var providerErr *session.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Err.Error()
	}
	return err.Error()
}
