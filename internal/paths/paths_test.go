package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandUser("~/models/checkpoint")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models", "checkpoint"), got)

	got, err = ExpandUser("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestExpandUserNoTilde(t *testing.T) {
	got, err := ExpandUser("/tmp/checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/checkpoint", got)

	// A tilde elsewhere in the path is not expanded.
	got, err = ExpandUser("/tmp/~x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/~x", got)
}

func TestResolveAbsolute(t *testing.T) {
	got, err := Resolve("some/relative/dir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.True(t, strings.HasSuffix(got, filepath.Join("some", "relative", "dir")))
}
