package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
)

// Keychain stores credentials in a Repo and manages the default credential slot.
type Keychain struct {
	repo    Repo
	nowFunc func() time.Time
}

type KeychainOption func(*Keychain)

// WithNowFunc sets the clock used for CreatedAt/UpdatedAt (primarily for testing).
func WithNowFunc(now func() time.Time) KeychainOption {
	return func(k *Keychain) {
		k.nowFunc = now
	}
}

func NewKeychain(repo Repo, options ...KeychainOption) *Keychain {
	k := &Keychain{repo: repo, nowFunc: time.Now}
	for _, opt := range options {
		opt(k)
	}
	return k
}

// Store saves a token under a new credential ID. It does not change the default slot.
func (k *Keychain) Store(ctx context.Context, t Token) (*Credential, error) {
	if t.AccessToken == "" {
		return nil, fmt.Errorf("[Keychain.Store] %w: empty access token", signinerrors.ErrInvalidToken)
	}
	now := k.nowFunc()
	if t.IssuedAt.IsZero() {
		t.IssuedAt = now
	}
	c := &Credential{
		ID:        uuid.New().String(),
		Token:     t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := k.repo.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("[Keychain.Store] upsert: %w", err)
	}
	return c.Clone(), nil
}

// Replace swaps the token held by an existing credential, keeping its ID.
func (k *Keychain) Replace(ctx context.Context, c *Credential, t Token) (*Credential, error) {
	if c == nil || c.ID == "" {
		return nil, fmt.Errorf("[Keychain.Replace] %w", signinerrors.ErrInvalidID)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("[Keychain.Replace] %w: empty access token", signinerrors.ErrInvalidToken)
	}
	next := c.Clone()
	next.Token = c.Token.Merge(t)
	next.UpdatedAt = k.nowFunc()
	if next.Token.IssuedAt.IsZero() {
		next.Token.IssuedAt = next.UpdatedAt
	}
	if err := k.repo.Upsert(ctx, next); err != nil {
		return nil, fmt.Errorf("[Keychain.Replace] upsert: %w", err)
	}
	return next.Clone(), nil
}

// Default returns the default credential, or nil when the slot is empty.
// A slot pointing at a credential that no longer exists is reported as empty.
func (k *Keychain) Default(ctx context.Context) (*Credential, error) {
	id, err := k.repo.DefaultID(ctx)
	if errors.Is(err, signinerrors.ErrNotFound) || (err == nil && id == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[Keychain.Default] default id: %w", err)
	}
	c, err := k.repo.Get(ctx, id)
	if errors.Is(err, signinerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[Keychain.Default] get %s: %w", id, err)
	}
	return c.Clone(), nil
}

// SetDefault points the default slot at c. A nil credential empties the slot.
func (k *Keychain) SetDefault(ctx context.Context, c *Credential) error {
	id := ""
	if c != nil {
		id = c.ID
	}
	if err := k.repo.SetDefaultID(ctx, id); err != nil {
		return fmt.Errorf("[Keychain.SetDefault] %w", err)
	}
	return nil
}

// Clear deletes c and empties the default slot if it pointed at c.
// A nil c clears whatever the default slot holds.
func (k *Keychain) Clear(ctx context.Context, c *Credential) error {
	id, err := k.repo.DefaultID(ctx)
	if err != nil && !errors.Is(err, signinerrors.ErrNotFound) {
		return fmt.Errorf("[Keychain.Clear] default id: %w", err)
	}
	target := id
	if c != nil {
		target = c.ID
	}
	if target != "" {
		if err := k.repo.Delete(ctx, target); err != nil && !errors.Is(err, signinerrors.ErrNotFound) {
			return fmt.Errorf("[Keychain.Clear] delete %s: %w", target, err)
		}
	}
	if id != "" && id == target {
		if err := k.repo.SetDefaultID(ctx, ""); err != nil {
			return fmt.Errorf("[Keychain.Clear] reset default: %w", err)
		}
	}
	return nil
}
