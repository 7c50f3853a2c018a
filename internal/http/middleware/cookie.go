package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const SessionCookieName = "session"

type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

func SetSessionCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
}

func ClearSessionCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", cfg.Secure, true)
}

// bearerToken returns the credential of an "Authorization: Bearer <x>" header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func cookieToken(c *gin.Context) string {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}

// SessionToken finds the session token of a request: the cookie first, then a bearer header.
func SessionToken(c *gin.Context) (token string, fromCookie bool) {
	if t := cookieToken(c); t != "" {
		return t, true
	}
	return bearerToken(c), false
}
