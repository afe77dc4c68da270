package hashutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlake3(t *testing.T) {
	data := []byte("chest x-ray")
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fromFile, err := Blake3File(path)
	require.NoError(t, err)
	assert.Equal(t, Blake3Hash(data), fromFile)
	assert.Len(t, fromFile, 64)

	_, err = Blake3File(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSha3256Hash(t *testing.T) {
	assert.Equal(t,
		"a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a",
		Sha3256Hash(nil),
	)
}
