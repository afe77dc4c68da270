package randutil

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

func RandomString(length int) (string, error) {
	key := make([]byte, length)

	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}

// MaskString hides all but the first and last few characters of s.
func MaskString(s string, visibleStart, visibleEnd int) string {
	if len(s) <= visibleStart+visibleEnd {
		return s
	}

	start := s[:visibleStart]
	end := s[len(s)-visibleEnd:]
	masked := start + strings.Repeat("*", len(s)-(visibleStart+visibleEnd)) + end
	return masked
}
