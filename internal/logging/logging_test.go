package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	log, closer, err := New(&console, path, true)
	require.NoError(t, err)
	log.Info().Str("sender", "A").Msg("balance checked")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "balance checked")
	assert.Contains(t, string(data), "sender=A")
	assert.Contains(t, console.String(), "balance checked")
}

func TestNewAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	for _, msg := range []string{"first", "second"} {
		log, closer, err := New(&bytes.Buffer{}, path, true)
		require.NoError(t, err)
		log.Info().Msg(msg)
		require.NoError(t, closer.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestNewWithoutFile(t *testing.T) {
	var console bytes.Buffer
	log, closer, err := New(&console, "", true)
	require.NoError(t, err)
	log.Warn().Msg("console only")
	assert.NoError(t, closer.Close())
	assert.Contains(t, console.String(), "console only")
}
