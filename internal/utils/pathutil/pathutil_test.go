package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.medpredict")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".medpredict"), got)

	got, err = ExpandPath("/var/lib/medpredict")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/medpredict", got)

	got, err = ExpandPath("~other/x")
	require.NoError(t, err)
	assert.Equal(t, "~other/x", got)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte{1}, 0o644))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
}
