package credential_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/credential/repofake"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 11, 4, 9, 30, 0, 0, time.UTC)

// testFixture holds a keychain over an in-memory repo
type testFixture struct {
	repo     *repofake.FakeCredentialRepo
	keychain *credential.Keychain
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	repo := repofake.NewFakeCredentialRepo()
	return &testFixture{
		repo:     repo,
		keychain: credential.NewKeychain(repo, credential.WithNowFunc(func() time.Time { return testNow })),
	}
}

func TestKeychain_DefaultEmpty(t *testing.T) {
	f := setupTestFixture(t)
	c, err := f.keychain.Default(context.Background())
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestKeychain_StoreAndSetDefault(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	c, err := f.keychain.Store(ctx, credential.Token{AccessToken: "abc123", RefreshToken: "r1"})
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.Equal(t, testNow, c.CreatedAt)
	require.Equal(t, testNow, c.Token.IssuedAt)

	// Storing alone does not fill the slot
	def, err := f.keychain.Default(ctx)
	require.NoError(t, err)
	require.Nil(t, def)

	require.NoError(t, f.keychain.SetDefault(ctx, c))
	def, err = f.keychain.Default(ctx)
	require.NoError(t, err)
	require.Equal(t, c.ID, def.ID)
	require.Equal(t, "abc123", def.Token.AccessToken)
}

func TestKeychain_StoreRejectsEmptyAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.keychain.Store(context.Background(), credential.Token{})
	require.ErrorIs(t, err, signinerrors.ErrInvalidToken)
	require.Equal(t, 0, f.repo.Len())
}

func TestKeychain_ReplaceKeepsIDAndMergesOmittedFields(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	c, err := f.keychain.Store(ctx, credential.Token{
		AccessToken:  "abc123",
		RefreshToken: "r1",
		IDToken:      "id-1",
		Scope:        []string{"openid"},
	})
	require.NoError(t, err)

	next, err := f.keychain.Replace(ctx, c, credential.Token{AccessToken: "def456"})
	require.NoError(t, err)
	require.Equal(t, c.ID, next.ID)
	require.Equal(t, "def456", next.Token.AccessToken)
	require.Equal(t, "r1", next.Token.RefreshToken)
	require.Equal(t, "id-1", next.Token.IDToken)
	require.Equal(t, []string{"openid"}, next.Token.Scope)

	stored, err := f.repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "def456", stored.Token.AccessToken)
}

func TestKeychain_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the default credential", func(t *testing.T) {
		f := setupTestFixture(t)
		c, err := f.keychain.Store(ctx, credential.Token{AccessToken: "abc123"})
		require.NoError(t, err)
		require.NoError(t, f.keychain.SetDefault(ctx, c))

		require.NoError(t, f.keychain.Clear(ctx, c))
		def, err := f.keychain.Default(ctx)
		require.NoError(t, err)
		require.Nil(t, def)
		require.Equal(t, 0, f.repo.Len())
	})

	t.Run("nil clears whatever is in the slot", func(t *testing.T) {
		f := setupTestFixture(t)
		c, err := f.keychain.Store(ctx, credential.Token{AccessToken: "abc123"})
		require.NoError(t, err)
		require.NoError(t, f.keychain.SetDefault(ctx, c))

		require.NoError(t, f.keychain.Clear(ctx, nil))
		require.Equal(t, 0, f.repo.Len())
		def, err := f.keychain.Default(ctx)
		require.NoError(t, err)
		require.Nil(t, def)
	})

	t.Run("non default credential leaves the slot alone", func(t *testing.T) {
		f := setupTestFixture(t)
		a, err := f.keychain.Store(ctx, credential.Token{AccessToken: "a"})
		require.NoError(t, err)
		b, err := f.keychain.Store(ctx, credential.Token{AccessToken: "b"})
		require.NoError(t, err)
		require.NoError(t, f.keychain.SetDefault(ctx, a))

		require.NoError(t, f.keychain.Clear(ctx, b))
		def, err := f.keychain.Default(ctx)
		require.NoError(t, err)
		require.Equal(t, a.ID, def.ID)
	})

	t.Run("empty keychain is a no-op", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.keychain.Clear(ctx, nil))
	})
}

func TestKeychain_DanglingDefault(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.repo.SetDefaultID(ctx, "gone"))

	c, err := f.keychain.Default(ctx)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestKeychain_RepoFailure(t *testing.T) {
	f := setupTestFixture(t)
	boom := errors.New("disk full")
	f.repo.SetFail(boom)

	_, err := f.keychain.Store(context.Background(), credential.Token{AccessToken: "abc123"})
	require.ErrorIs(t, err, boom)
	_, err = f.keychain.Default(context.Background())
	require.ErrorIs(t, err, boom)
}
