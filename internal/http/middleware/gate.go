package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/metrics"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

// Class is what a request path requires before it may proceed.
type Class int

const (
	ClassPublic Class = iota
	ClassBearer
	ClassSession
	ClassUI
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassBearer:
		return "bearer"
	case ClassSession:
		return "session"
	default:
		return "ui"
	}
}

type Outcome int

const (
	Allowed Outcome = iota
	DeniedRedirect
	DeniedUnauthorized
	DeniedServerError
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case DeniedRedirect:
		return "redirect"
	case DeniedUnauthorized:
		return "unauthorized"
	default:
		return "server_error"
	}
}

// Policy is the single place that lists which paths skip authentication.
type Policy struct {
	PublicExact    []string
	PublicPrefixes []string
	BearerPrefix   string
	APIPrefix      string
	LoginPath      string
}

func DefaultPolicy() Policy {
	return Policy{
		PublicExact: []string{
			"/login", "/logout", "/favicon.ico", "/health",
			"/api/health", "/api/info", "/metrics",
			"/api/auth/login", "/api/auth/logout",
			"/api/client/login",
		},
		PublicPrefixes: []string{"/static/"},
		BearerPrefix:   "/api/client/",
		APIPrefix:      "/api/",
		LoginPath:      "/login",
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func (p Policy) Classify(requestPath string) Class {
	cleaned := cleanPath(requestPath)
	trimmed := strings.TrimSuffix(cleaned, "/")
	for _, exact := range p.PublicExact {
		if cleaned == exact || trimmed == exact {
			return ClassPublic
		}
	}
	for _, prefix := range p.PublicPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return ClassPublic
		}
	}
	switch {
	case strings.HasPrefix(cleaned, p.BearerPrefix):
		return ClassBearer
	case strings.HasPrefix(cleaned, p.APIPrefix) || trimmed+"/" == p.APIPrefix:
		return ClassSession
	default:
		return ClassUI
	}
}

type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*auth.Principal, error)
}

// DeviceVerifier resolves a bearer credential to an active device, or nil.
type DeviceVerifier interface {
	VerifyDevice(ctx context.Context, credential string) (*model.Device, error)
}

type Decision struct {
	Class     Class
	Outcome   Outcome
	Principal *auth.Principal
	Device    *model.Device
	Err       error

	clearCookie bool
}

type Gate struct {
	policy   Policy
	sessions SessionVerifier
	devices  DeviceVerifier
	cookies  CookieConfig
}

func NewGate(policy Policy, sessions SessionVerifier, devices DeviceVerifier, cookies CookieConfig) *Gate {
	return &Gate{policy: policy, sessions: sessions, devices: devices, cookies: cookies}
}

// Decide never returns Allowed for a protected path unless a check succeeded.
// Errors and panics inside the checks become DeniedServerError.
func (g *Gate) Decide(c *gin.Context) (d Decision) {
	d.Class = g.policy.Classify(c.Request.URL.Path)
	d.Outcome = DeniedServerError

	defer func() {
		if r := recover(); r != nil {
			d = Decision{Class: d.Class, Outcome: DeniedServerError, Err: fmt.Errorf("panic in gate: %v", r)}
		}
	}()

	ctx := c.Request.Context()
	switch d.Class {
	case ClassPublic:
		d.Outcome = Allowed

	case ClassBearer:
		credential := bearerToken(c)
		if credential == "" {
			d.Outcome = DeniedUnauthorized
			return d
		}
		device, err := g.devices.VerifyDevice(ctx, credential)
		switch {
		case err != nil:
			d.Err = err
		case device == nil:
			d.Outcome = DeniedUnauthorized
		default:
			d.Outcome, d.Device = Allowed, device
		}

	case ClassSession:
		token, fromCookie := SessionToken(c)
		if token == "" {
			d.Outcome = DeniedUnauthorized
			return d
		}
		principal, err := g.sessions.VerifySession(ctx, token)
		switch {
		case err != nil:
			d.Err = err
		case principal == nil:
			d.Outcome, d.clearCookie = DeniedUnauthorized, fromCookie
		default:
			d.Outcome, d.Principal = Allowed, principal
		}

	default:
		token := cookieToken(c)
		if token == "" {
			d.Outcome = DeniedRedirect
			return d
		}
		principal, err := g.sessions.VerifySession(ctx, token)
		switch {
		case err != nil:
			d.Err = err
		case principal == nil:
			d.Outcome, d.clearCookie = DeniedRedirect, true
		default:
			d.Outcome, d.Principal = Allowed, principal
		}
	}
	return d
}

// LoginRedirect builds /login?next=<original request URI>.
func (g *Gate) LoginRedirect(c *gin.Context) string {
	next := c.Request.URL.RequestURI()
	if next == "" || next == "/" {
		return g.policy.LoginPath
	}
	return g.policy.LoginPath + "?" + url.Values{"next": {next}}.Encode()
}

func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Decide(c)
		metrics.GateDecisions.WithLabelValues(d.Class.String(), d.Outcome.String()).Inc()

		if d.clearCookie {
			ClearSessionCookie(c, g.cookies)
		}

		switch d.Outcome {
		case Allowed:
			if d.Principal != nil {
				SetCurrentUser(c, d.Principal)
			}
			if d.Device != nil {
				SetCurrentDevice(c, d.Device)
			}
			c.Next()

		case DeniedRedirect:
			c.Redirect(http.StatusFound, g.LoginRedirect(c))
			c.Abort()

		case DeniedUnauthorized:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})

		default:
			log.Error().Err(d.Err).Str("path", c.Request.URL.Path).Str("class", d.Class.String()).
				Msg("[gate] authorization check failed, denying request")
			if d.Class == ClassUI {
				c.Redirect(http.StatusFound, g.LoginRedirect(c))
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
	}
}
