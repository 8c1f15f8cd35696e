package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-signin/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestScopeList(t *testing.T) {
	require.Equal(t, []string{"openid", "email"}, utils.ScopeList("openid  email"))
	require.Equal(t, []string{"a", "b"}, utils.ScopeList([]any{"a", 3, "b"}))
	require.Equal(t, []string{"x"}, utils.ScopeList([]string{"x"}))
	require.Nil(t, utils.ScopeList(42))
}

func TestPtr(t *testing.T) {
	require.Equal(t, 7, *utils.Ptr(7))
	require.Nil(t, utils.UnixPtr(0))
	require.Equal(t, int64(1700000000), utils.UnixPtr(1700000000).Unix())
}
