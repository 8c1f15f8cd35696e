// Package directauthfake provides a scripted credential provider for tests of code
// that sits on top of directauth.
package directauthfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/directauth"
)

const (
	OpAuthenticate = "authenticate"
	OpRefresh      = "refresh"
	OpRevoke       = "revoke"
	OpFetchProfile = "fetch_profile"
)

type account struct {
	password string
	token    credential.Token
}

// FakeProvider answers password grants from registered accounts and replays queued
// refresh results. It never touches the network.
type FakeProvider struct {
	lock          sync.Mutex
	accounts      map[string]account
	authErr       error
	refreshTokens []credential.Token
	refreshErr    error
	revokeErr     error
	profile       *credential.UserProfile
	profileErr    error
	profiles      map[string]*credential.UserProfile
	calls         map[string]int
	gate          chan struct{}
	entered       chan string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		accounts: make(map[string]account),
		profiles: make(map[string]*credential.UserProfile),
		calls:    make(map[string]int),
		entered:  make(chan string, 16),
	}
}

// AddUser makes AuthenticateWithPassword succeed with token for the given password.
// Any other password is denied with invalid_grant.
func (p *FakeProvider) AddUser(username, password string, token credential.Token) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.accounts[username] = account{password: password, token: token}
}

// FailAuthenticate makes every password grant return err. nil restores normal answers.
func (p *FakeProvider) FailAuthenticate(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.authErr = err
}

// QueueRefresh appends tokens returned by successive Refresh calls.
func (p *FakeProvider) QueueRefresh(tokens ...credential.Token) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.refreshTokens = append(p.refreshTokens, tokens...)
}

func (p *FakeProvider) FailRefresh(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.refreshErr = err
}

func (p *FakeProvider) FailRevoke(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.revokeErr = err
}

// SetProfile is the profile returned by FetchUserProfile.
func (p *FakeProvider) SetProfile(profile *credential.UserProfile) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.profile = profile
}

func (p *FakeProvider) FailProfile(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.profileErr = err
}

// Hold blocks every provider call until the returned release func is called or the
// call's context ends.
func (p *FakeProvider) Hold() (release func()) {
	gate := make(chan struct{})
	p.lock.Lock()
	p.gate = gate
	p.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lock.Lock()
			p.gate = nil
			p.lock.Unlock()
			close(gate)
		})
	}
}

// Entered receives the operation name each time a call starts, which lets tests wait
// until a held call is in flight.
func (p *FakeProvider) Entered() <-chan string {
	return p.entered
}

// Calls is the number of times op was invoked.
func (p *FakeProvider) Calls(op string) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.calls[op]
}

func (p *FakeProvider) enter(ctx context.Context, op string) error {
	p.lock.Lock()
	p.calls[op]++
	gate := p.gate
	p.lock.Unlock()

	select {
	case p.entered <- op:
	default:
	}
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *FakeProvider) AuthenticateWithPassword(ctx context.Context, username, password string) (directauth.Status, error) {
	if err := p.enter(ctx, OpAuthenticate); err != nil {
		return nil, err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.authErr != nil {
		return nil, p.authErr
	}
	acc, ok := p.accounts[username]
	if !ok || acc.password != password {
		return directauth.Denied{Code: "invalid_grant", Description: "Invalid username or password"}, nil
	}
	return directauth.Success{Token: acc.token}, nil
}

func (p *FakeProvider) Refresh(ctx context.Context, c *credential.Credential) (credential.Token, error) {
	if err := p.enter(ctx, OpRefresh); err != nil {
		return credential.Token{}, err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if c == nil {
		return credential.Token{}, directauth.ErrNoCredential
	}
	if p.refreshErr != nil {
		return credential.Token{}, p.refreshErr
	}
	if len(p.refreshTokens) == 0 {
		return credential.Token{}, directauth.ErrNoRefreshToken
	}
	next := p.refreshTokens[0]
	p.refreshTokens = p.refreshTokens[1:]
	delete(p.profiles, c.ID)
	return c.Token.Merge(next), nil
}

func (p *FakeProvider) Revoke(ctx context.Context, c *credential.Credential) error {
	if err := p.enter(ctx, OpRevoke); err != nil {
		return err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if c != nil {
		delete(p.profiles, c.ID)
	}
	return p.revokeErr
}

func (p *FakeProvider) CachedUserProfile(c *credential.Credential) *credential.UserProfile {
	if c == nil {
		return nil
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if profile, ok := p.profiles[c.ID]; ok {
		cp := *profile
		return &cp
	}
	return nil
}

func (p *FakeProvider) FetchUserProfile(ctx context.Context, c *credential.Credential) (*credential.UserProfile, error) {
	if err := p.enter(ctx, OpFetchProfile); err != nil {
		return nil, err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if c == nil {
		return nil, directauth.ErrNoCredential
	}
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	if p.profile == nil {
		return nil, directauth.ErrUserInfoUnsupported
	}
	cp := *p.profile
	p.profiles[c.ID] = &cp
	out := cp
	return &out, nil
}
