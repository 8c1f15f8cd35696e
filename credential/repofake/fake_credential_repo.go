package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-signin/credential"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
)

var _ credential.Repo = (*FakeCredentialRepo)(nil)

type FakeCredentialRepo struct {
	credentials map[string]*credential.Credential
	defaultID   string
	lock        sync.RWMutex
	fail        error // returned by every call when set
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return &FakeCredentialRepo{
		credentials: make(map[string]*credential.Credential),
	}
}

func (r *FakeCredentialRepo) Upsert(_ context.Context, c *credential.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if c == nil || c.ID == "" {
		return signinerrors.ErrInvalidID
	}
	r.credentials[c.ID] = c.Clone()
	return nil
}

func (r *FakeCredentialRepo) Get(_ context.Context, id string) (*credential.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}
	c, ok := r.credentials[id]
	if !ok {
		return nil, signinerrors.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *FakeCredentialRepo) Delete(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if _, ok := r.credentials[id]; !ok {
		return signinerrors.ErrNotFound
	}
	delete(r.credentials, id)
	return nil
}

func (r *FakeCredentialRepo) DefaultID(_ context.Context) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.fail != nil {
		return "", r.fail
	}
	if r.defaultID == "" {
		return "", signinerrors.ErrNotFound
	}
	return r.defaultID, nil
}

func (r *FakeCredentialRepo) SetDefaultID(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.defaultID = id
	return nil
}

// Len returns the number of stored credentials.
func (r *FakeCredentialRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.credentials)
}

// SetFail sets the error returned by every subsequent call.
func (r *FakeCredentialRepo) SetFail(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.fail = err
}
