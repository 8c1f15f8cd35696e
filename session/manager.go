// Package session implements the authentication session state machine that sits
// between a sign-in presentation layer and a credential provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/directauth"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Provider performs the remote half of the session: the password exchange, refresh,
// revocation and userinfo. directauth.Flow is the production implementation.
type Provider interface {
	AuthenticateWithPassword(ctx context.Context, username, password string) (directauth.Status, error)
	Refresh(ctx context.Context, c *credential.Credential) (credential.Token, error)
	Revoke(ctx context.Context, c *credential.Credential) error
	CachedUserProfile(c *credential.Credential) *credential.UserProfile
	FetchUserProfile(ctx context.Context, c *credential.Credential) (*credential.UserProfile, error)
}

// CredentialStore holds issued credentials and the current-credential slot.
// credential.Keychain is the production implementation.
type CredentialStore interface {
	Store(ctx context.Context, t credential.Token) (*credential.Credential, error)
	Replace(ctx context.Context, c *credential.Credential, t credential.Token) (*credential.Credential, error)
	Default(ctx context.Context) (*credential.Credential, error)
	SetDefault(ctx context.Context, c *credential.Credential) error
	Clear(ctx context.Context, c *credential.Credential) error
}

// Deps holds the collaborators of a Manager.
type Deps struct {
	Provider    Provider
	Credentials CredentialStore
}

// Observer receives every committed state.
type Observer func(State)

type subscriber struct {
	id int
	fn Observer
}

// Manager owns the session state. Reads are safe from any goroutine. Operations are
// not serialized against each other; callers keep at most one in flight.
type Manager struct {
	provider    Provider
	credentials CredentialStore
	logger      zerolog.Logger
	nowFunc     func() time.Time
	initial     []Observer

	lock        sync.RWMutex
	state       State
	current     *credential.Credential
	subscribers []subscriber
	nextID      int
	pending     []State
	delivering  bool
}

type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNowFunc sets the clock used to decide whether a stored credential has expired.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithObserver subscribes fn before the manager is returned. fn is called once with
// the initial state and then with every committed state.
func WithObserver(fn Observer) ManagerOption {
	return func(m *Manager) {
		m.initial = append(m.initial, fn)
	}
}

// NewManager builds a Manager and restores the session from the credential store.
// The initial state is Authenticated when the stored default credential has not expired.
func NewManager(ctx context.Context, deps Deps, options ...ManagerOption) (*Manager, error) {
	if deps.Provider == nil {
		return nil, errors.New("[NewManager] Provider is required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("[NewManager] Credentials store is required")
	}

	m := &Manager{
		provider:    deps.Provider,
		credentials: deps.Credentials,
		logger:      log.Logger,
		nowFunc:     time.Now,
		state:       signedOut(),
	}
	for _, opt := range options {
		opt(m)
	}

	c, err := m.credentials.Default(ctx)
	if err != nil {
		return nil, fmt.Errorf("[NewManager] load default credential: %w", err)
	}
	switch {
	case c == nil:
	case !c.Token.Valid(m.nowFunc()):
		m.logger.Info().Str("credential", c.ID).Time("expiry", c.Token.Expiry).Msg("stored credential has expired")
	default:
		m.state = authenticated()
		m.current = c
	}

	for _, fn := range m.initial {
		m.Subscribe(fn)
		m.notify(fn, m.state)
	}
	m.initial = nil

	m.logger.Debug().Stringer("state", m.state).Msg("session restored")
	return m, nil
}

// State returns the last committed state.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// IsAuthenticated is true when the state is Authenticated.
func (m *Manager) IsAuthenticated() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state.Kind == Authenticated && m.current != nil
}

// CurrentToken returns the access token of the current credential.
func (m *Manager) CurrentToken() (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Token.AccessToken, true
}

// Credential returns a copy of the current credential, or nil.
func (m *Manager) Credential() *credential.Credential {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.Clone()
}

// Subscribe registers fn for every state committed from now on and returns a func
// that removes it. States are delivered one at a time in commit order, outside the
// state lock, so fn may read the manager.
func (m *Manager) Subscribe(fn Observer) (unsubscribe func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Authenticate signs the user in with a password. The state is Authenticating before
// the provider is called and Authenticated or Failed when this returns.
func (m *Manager) Authenticate(ctx context.Context, username, password string) error {
	m.lock.RLock()
	previous := m.current
	m.lock.RUnlock()
	m.commit(authenticating(), nil)

	// A new sign-in ends the previous session, including an expired stored one.
	m.endCredential(ctx, previous)

	status, err := m.provider.AuthenticateWithPassword(ctx, username, password)
	if err != nil {
		m.commit(failed(err.Error()), nil)
		return &ProviderError{Op: "authenticate", Err: err}
	}
	success, ok := status.(directauth.Success)
	if !ok {
		m.logger.Info().Str("status", statusKind(status)).Msg("authentication not successful")
		m.commit(failed(reasonAuthenticationFailed), nil)
		return fmt.Errorf("[Manager.Authenticate] %w", &UnexpectedResponseError{Status: status})
	}

	// The exchange has completed; persisting it does not depend on the caller still waiting.
	storeCtx := context.WithoutCancel(ctx)
	c, err := m.credentials.Store(storeCtx, success.Token)
	if err == nil {
		if err = m.credentials.SetDefault(storeCtx, c); err != nil {
			m.discard(storeCtx, c)
		}
	}
	if err != nil {
		m.commit(failed(err.Error()), nil)
		return fmt.Errorf("[Manager.Authenticate] store credential: %w", err)
	}

	m.commit(authenticated(), c)
	return nil
}

// Logout revokes the current credential when possible and always ends SignedOut.
// Remote failures are logged, never returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.lock.RLock()
	c := m.current
	m.lock.RUnlock()

	m.endCredential(ctx, c)
	m.commit(signedOut(), nil)
	return nil
}

// RefreshAccessToken replaces the current credential's tokens. On failure the
// credential is discarded and the state is Failed.
func (m *Manager) RefreshAccessToken(ctx context.Context) error {
	m.lock.RLock()
	state, c := m.state, m.current
	m.lock.RUnlock()
	if state.Kind != Authenticated || c == nil {
		return fmt.Errorf("[Manager.RefreshAccessToken] %w", ErrNoActiveCredential)
	}

	tok, err := m.provider.Refresh(ctx, c)
	if err != nil {
		m.discard(ctx, c)
		m.commit(failed(err.Error()), nil)
		return &ProviderError{Op: "refresh", Err: err}
	}

	next, err := m.credentials.Replace(context.WithoutCancel(ctx), c, tok)
	if err != nil {
		m.discard(ctx, c)
		m.commit(failed(err.Error()), nil)
		return fmt.Errorf("[Manager.RefreshAccessToken] store credential: %w", err)
	}

	m.commit(authenticated(), next)
	return nil
}

// CurrentUser returns the profile of the signed-in user, from the provider's cache
// when it has one. It returns nil, nil when there is no session.
func (m *Manager) CurrentUser(ctx context.Context) (*credential.UserProfile, error) {
	m.lock.RLock()
	c := m.current.Clone()
	m.lock.RUnlock()
	if c == nil {
		return nil, nil
	}

	if profile := m.provider.CachedUserProfile(c); profile != nil {
		return profile, nil
	}
	profile, err := m.provider.FetchUserProfile(ctx, c)
	if err != nil {
		return nil, &ProviderError{Op: "fetch user profile", Err: err}
	}
	return profile, nil
}

// endCredential revokes c and removes it from the store. With a nil c it ends the
// stored default instead, since an expired credential restored at startup is still
// worth revoking. Failures are logged.
func (m *Manager) endCredential(ctx context.Context, c *credential.Credential) {
	if c == nil {
		stored, err := m.credentials.Default(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("load stored credential")
		}
		c = stored
	}
	if c == nil {
		if err := m.credentials.Clear(context.WithoutCancel(ctx), nil); err != nil {
			m.logger.Warn().Err(err).Msg("failed to clear credential slot")
		}
		return
	}
	if err := m.provider.Revoke(ctx, c); err != nil {
		m.logger.Warn().Err(err).Str("credential", c.ID).Msg("revocation failed, forgetting credential locally")
	}
	m.discard(ctx, c)
}

// discard removes c from the credential store, logging failures.
func (m *Manager) discard(ctx context.Context, c *credential.Credential) {
	if c == nil {
		return
	}
	if err := m.credentials.Clear(context.WithoutCancel(ctx), c); err != nil {
		m.logger.Warn().Err(err).Str("credential", c.ID).Msg("failed to clear credential")
	}
}

// commit atomically sets the state and the current credential, then delivers the
// state to subscribers. A commit made while another goroutine is delivering is
// queued and delivered by that goroutine, which keeps delivery in commit order.
func (m *Manager) commit(state State, current *credential.Credential) {
	m.lock.Lock()
	from := m.state
	m.state = state
	m.current = current
	m.pending = append(m.pending, state)
	if m.delivering {
		m.lock.Unlock()
		m.logTransition(from, state)
		return
	}
	m.delivering = true
	m.logTransition(from, state)

	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		subscribers := append([]subscriber(nil), m.subscribers...)
		m.lock.Unlock()

		for _, s := range subscribers {
			m.notify(s.fn, next)
		}

		m.lock.Lock()
	}
	m.delivering = false
	m.lock.Unlock()
}

// notify delivers state to one observer. A panicking observer is logged and skipped
// so the transition still completes and later states are still delivered.
func (m *Manager) notify(fn Observer, state State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("state", state.String()).Msg("session observer panicked")
		}
	}()
	fn(state)
}

func (m *Manager) logTransition(from, to State) {
	event := m.logger.Info()
	if to.Kind == Failed {
		event = m.logger.Warn().Str("reason", to.Reason)
	}
	event.Str("from", string(from.Kind)).Str("to", string(to.Kind)).Msg("session state changed")
}

func statusKind(status directauth.Status) string {
	if status == nil {
		return "none"
	}
	return string(status.Kind())
}
