// Package repotest holds behaviour every credential.Repo implementation must satisfy.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-signin/credential"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
	"github.com/stretchr/testify/require"
)

// RunRepoTests exercises repo through the credential.Repo contract. newRepo must
// return an empty repo on each call.
func RunRepoTests(t *testing.T, newRepo func(t *testing.T) credential.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Get(ctx, "missing")
		require.ErrorIs(t, err, signinerrors.ErrNotFound)
	})

	t.Run("default id empty", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.DefaultID(ctx)
		require.ErrorIs(t, err, signinerrors.ErrNotFound)
	})

	t.Run("upsert get round trip", func(t *testing.T) {
		r := newRepo(t)
		c := sample("cred-1", "abc123")
		require.NoError(t, r.Upsert(ctx, c))

		got, err := r.Get(ctx, "cred-1")
		require.NoError(t, err)
		require.Equal(t, "abc123", got.Token.AccessToken)
		require.Equal(t, []string{"openid", "email"}, got.Token.Scope)
		require.True(t, c.Token.Expiry.Equal(got.Token.Expiry))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Upsert(ctx, sample("cred-1", "abc123")))
		require.NoError(t, r.Upsert(ctx, sample("cred-1", "def456")))

		got, err := r.Get(ctx, "cred-1")
		require.NoError(t, err)
		require.Equal(t, "def456", got.Token.AccessToken)
	})

	t.Run("upsert rejects empty id", func(t *testing.T) {
		r := newRepo(t)
		require.ErrorIs(t, r.Upsert(ctx, sample("", "abc123")), signinerrors.ErrInvalidID)
	})

	t.Run("delete", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Upsert(ctx, sample("cred-1", "abc123")))
		require.NoError(t, r.Delete(ctx, "cred-1"))
		_, err := r.Get(ctx, "cred-1")
		require.ErrorIs(t, err, signinerrors.ErrNotFound)
		require.ErrorIs(t, r.Delete(ctx, "cred-1"), signinerrors.ErrNotFound)
	})

	t.Run("default id set and reset", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.SetDefaultID(ctx, "cred-1"))
		id, err := r.DefaultID(ctx)
		require.NoError(t, err)
		require.Equal(t, "cred-1", id)

		require.NoError(t, r.SetDefaultID(ctx, ""))
		_, err = r.DefaultID(ctx)
		require.ErrorIs(t, err, signinerrors.ErrNotFound)
	})
}

func sample(id, accessToken string) *credential.Credential {
	now := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	return &credential.Credential{
		ID: id,
		Token: credential.Token{
			AccessToken:  accessToken,
			RefreshToken: "refresh-" + accessToken,
			Scope:        []string{"openid", "email"},
			TokenType:    "Bearer",
			Expiry:       now.Add(time.Hour),
			IssuedAt:     now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
