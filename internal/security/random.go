package security

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomString returns a URL-safe random string built from n bytes
// of entropy.
func GenerateRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", errRead
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
