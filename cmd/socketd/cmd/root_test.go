package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/socialnet/socket/src/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestTokenIssuesVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	out, err := run(t, "token", "64b7f0c2a1b2c3d4e5f60718")
	require.NoError(t, err)

	claims, err := auth.NewAuthenticator("test-secret", zerolog.Nop()).Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.UserID)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SOCKET_AUTH_SECRET", "")

	_, err := run(t, "token", "u1")
	assert.ErrorContains(t, err, "auth.secret")
}

func TestServeRejectsInvalidAuthMode(t *testing.T) {
	_, err := run(t, "serve", "--auth-mode", "sometimes")
	assert.ErrorContains(t, err, "invalid auth mode")
}
