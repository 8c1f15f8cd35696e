// Package redisrepo provides a Redis-backed credential.Repo so several processes
// can share one signed in session.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-signin/credential"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "signin:credentials:"

// Config contains configuration options for the Redis repo
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "signin:credentials:"
	KeyPrefix string
}

var _ credential.Repo = (*Repo)(nil)

type Repo struct {
	client    *redis.Client
	keyPrefix string
}

func New(config Config) (*Repo, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	return &Repo{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

func (r *Repo) Upsert(ctx context.Context, c *credential.Credential) error {
	if c == nil || c.ID == "" {
		return signinerrors.ErrInvalidID
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := r.client.Set(ctx, r.credentialKey(c.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set credential %s: %w", c.ID, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*credential.Credential, error) {
	data, err := r.client.Get(ctx, r.credentialKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, signinerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential %s: %w", id, err)
	}
	var c credential.Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", signinerrors.ErrStoreCorrupted, err)
	}
	return &c, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.credentialKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", id, err)
	}
	if n == 0 {
		return signinerrors.ErrNotFound
	}
	return nil
}

func (r *Repo) DefaultID(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, r.defaultKey()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && id == "") {
		return "", signinerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get default credential id: %w", err)
	}
	return id, nil
}

// SetDefaultID stores id in the default slot; an empty id removes the slot key.
func (r *Repo) SetDefaultID(ctx context.Context, id string) error {
	var err error
	if id == "" {
		err = r.client.Del(ctx, r.defaultKey()).Err()
	} else {
		err = r.client.Set(ctx, r.defaultKey(), id, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set default credential id: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Repo) Close() error {
	return r.client.Close()
}

func (r *Repo) credentialKey(id string) string {
	return r.keyPrefix + "item:" + id
}

func (r *Repo) defaultKey() string {
	return r.keyPrefix + "default"
}
