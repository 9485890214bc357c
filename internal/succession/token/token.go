// Package token issues one-time download tokens for released archives.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const byteLength = 32

// Generate returns a URL-safe token carrying 256 bits of entropy.
func Generate() (string, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate download token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
