package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCredentials_Missing(t *testing.T) {
	_, err := ReadCredentials(filepath.Join(t.TempDir(), "creds.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func promptInput(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPromptRedisCredentials(t *testing.T) {
	var out bytes.Buffer

	creds, err := PromptRedisCredentials(promptInput(t, "feed\ns3cret\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, RedisCredentials{Username: "feed", Password: "s3cret"}, creds)
	assert.Contains(t, out.String(), "redis password")
}

func TestPromptRedisCredentials_PasswordOnly(t *testing.T) {
	creds, err := PromptRedisCredentials(promptInput(t, "\ns3cret"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, creds.Username)
	assert.Equal(t, "s3cret", creds.Password)
}

func TestPromptRedisCredentials_Empty(t *testing.T) {
	_, err := PromptRedisCredentials(promptInput(t, "\n\n"), &bytes.Buffer{})
	assert.Error(t, err)
}
