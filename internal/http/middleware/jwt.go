package middleware

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const deviceTokenType = "device"

// signs a token embedding the device's device_id in the "sub" claim.
func GenerateDeviceJWT(deviceID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": deviceID,
		"typ": deviceTokenType,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// verifies a device JWT and returns its device_id.
func ParseDeviceJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if typ, _ := claims["typ"].(string); typ != deviceTokenType {
		return "", errors.New("not a device token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("invalid sub claim")
	}
	return sub, nil
}

// LooksLikeJWT distinguishes a signed token from a raw API key.
func LooksLikeJWT(credential string) bool {
	dots := 0
	for _, r := range credential {
		if r == '.' {
			dots++
		}
	}
	return dots == 2
}
