package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// 48 bytes = 384 bits, 64 URL-safe characters.
const sessionTokenBytes = 48

func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
