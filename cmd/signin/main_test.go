package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jrsteele09/go-signin/internal/idptest"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) *idptest.Server {
	t.Helper()
	idp := idptest.New(t)
	idp.AddUser(t, idptest.User{Username: "alice", Password: "correct", Subject: "user-alice", Email: "alice@example.com"})

	t.Setenv("SIGNIN_ENV", "test")
	t.Setenv("SIGNIN_LOG_LEVEL", "error")
	t.Setenv("SIGNIN_ISSUER", idp.Issuer())
	t.Setenv("SIGNIN_CLIENT_ID", idp.ClientID())
	t.Setenv("SIGNIN_STORE", "file")
	t.Setenv("SIGNIN_DATA_FOLDER", t.TempDir())
	t.Setenv("SIGNIN_PASSWORD", "")
	return idp
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := dispatch(args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestDispatch_Usage(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "")
	require.ErrorIs(t, err, errUsage)
	_, err = runCommand(t, "", "unknown")
	require.ErrorIs(t, err, errUsage)
	_, err = runCommand(t, "", "login")
	require.ErrorIs(t, err, errUsage)
}

func TestDispatch_SessionAcrossInvocations(t *testing.T) {
	idp := setupEnv(t)

	out, err := runCommand(t, "", "status")
	require.NoError(t, err)
	require.Equal(t, "signed_out\n", out)

	_, err = runCommand(t, "", "login", "-u", "alice", "-p", "wrong")
	require.EqualError(t, err, "Authentication failed")

	out, err = runCommand(t, "correct\n", "login", "-u", "alice")
	require.NoError(t, err)
	require.Equal(t, "Signed in as alice\n", out)

	out, err = runCommand(t, "", "status")
	require.NoError(t, err)
	require.Equal(t, "authenticated\n", out)

	out, err = runCommand(t, "", "whoami")
	require.NoError(t, err)
	profile := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	require.Equal(t, "user-alice", profile["sub"])

	out, err = runCommand(t, "", "token")
	require.NoError(t, err)
	details := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(out), &details))
	require.NotEmpty(t, details["access_token"])
	require.NotEmpty(t, details["refresh_token"])

	out, err = runCommand(t, "", "refresh")
	require.NoError(t, err)
	require.Equal(t, "Token refreshed\n", out)

	out, err = runCommand(t, "", "logout")
	require.NoError(t, err)
	require.Equal(t, "Signed out\n", out)
	// Refresh and access token.
	require.Equal(t, 2, idp.Hits(idptest.RouteRevoke))

	out, err = runCommand(t, "", "token")
	require.NoError(t, err)
	require.Equal(t, "No Token\n", out)
}

func TestReadPassword(t *testing.T) {
	t.Setenv("SIGNIN_PASSWORD", "")
	p, err := readPassword("flag", strings.NewReader("stdin\n"))
	require.NoError(t, err)
	require.Equal(t, "flag", p)

	p, err = readPassword("", strings.NewReader("stdin\r\n"))
	require.NoError(t, err)
	require.Equal(t, "stdin", p)

	t.Setenv("SIGNIN_PASSWORD", "env")
	p, err = readPassword("", strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "env", p)

	t.Setenv("SIGNIN_PASSWORD", "")
	_, err = readPassword("", strings.NewReader(""))
	require.EqualError(t, err, "password is required")
}
