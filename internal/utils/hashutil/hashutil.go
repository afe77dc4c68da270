package hashutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

func Blake3Hash(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Blake3File streams the file at path through blake3.
func Blake3File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func Sha3256Hash(data []byte) string {
	hash := sha3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
