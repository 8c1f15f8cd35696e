package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-signin/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("SIGNIN_DATA_FOLDER", "/tmp/signin-test")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "Self Hosted Sign In", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "info", c.GetLogLevel())
	require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, c.GetScopes())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, config.StoreFile, c.GetStoreKind())
	require.Equal(t, "/tmp/signin-test", c.GetDataFolder())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("SIGNIN_ENV", "prod")
	t.Setenv("SIGNIN_ISSUER", "https://id.example.com/")
	t.Setenv("SIGNIN_CLIENT_ID", "mobile-app")
	t.Setenv("SIGNIN_SCOPES", "openid,offline_access")
	t.Setenv("SIGNIN_TIMEOUT", "5s")
	t.Setenv("SIGNIN_STORE", "Redis")
	t.Setenv("SIGNIN_ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, "https://id.example.com", c.GetIssuer())
	require.Equal(t, "mobile-app", c.GetClientID())
	require.Equal(t, []string{"openid", "offline_access"}, c.GetScopes())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, config.StoreRedis, c.GetStoreKind())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://app.example.com"))
	require.Equal(t, "http://localhost:3000, https://app.example.com", c.GetAllowedOrigins().String())
}
