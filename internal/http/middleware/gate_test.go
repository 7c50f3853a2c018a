package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type fakeSessions struct {
	principals map[string]*auth.Principal
	err        error
	panics     bool
}

func (f *fakeSessions) VerifySession(_ context.Context, token string) (*auth.Principal, error) {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.principals[token], nil
}

type fakeDevices struct {
	devices map[string]*model.Device
	err     error
}

func (f *fakeDevices) VerifyDevice(_ context.Context, credential string) (*model.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.devices[credential], nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newGateRouter(sessions *fakeSessions, devices *fakeDevices) *gin.Engine {
	gate := NewGate(DefaultPolicy(), sessions, devices, CookieConfig{})
	r := gin.New()
	r.Use(gate.Middleware())
	ok := func(c *gin.Context) {
		body := gin.H{"ok": true}
		if u, found := GetCurrentUser(c); found {
			body["user"] = u.Username
		}
		if d, found := GetCurrentDevice(c); found {
			body["device"] = d.DeviceID
		}
		c.JSON(http.StatusOK, body)
	}
	r.GET("/", ok)
	r.GET("/devices", ok)
	r.GET("/login", ok)
	r.GET("/static/app.css", ok)
	r.GET("/api/health", ok)
	r.GET("/api/devices", ok)
	r.GET("/api/client/playlists", ok)
	r.POST("/api/client/login", ok)
	admin := r.Group("/api/users", RequireAdmin())
	admin.GET("", ok)
	return r
}

func validSessions() *fakeSessions {
	return &fakeSessions{principals: map[string]*auth.Principal{
		"user-token":  {UserID: 1, Username: "alice"},
		"admin-token": {UserID: 2, Username: "root", IsAdmin: true},
	}}
}

func do(r *gin.Engine, method, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token}) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()
	cases := map[string]Class{
		"/login":                ClassPublic,
		"/login/":               ClassPublic,
		"/static/js/app.js":     ClassPublic,
		"/api/health":           ClassPublic,
		"/api/client/login":     ClassPublic,
		"/api/client/playlists": ClassBearer,
		"/api/devices":          ClassSession,
		"/api":                  ClassSession,
		"/":                     ClassUI,
		"/devices/3":            ClassUI,
		"/static/../api/users":  ClassSession,
		"/loginx":               ClassUI,
	}
	for path, want := range cases {
		assert.Equal(t, want, p.Classify(path), path)
	}
}

func TestGatePublicPaths(t *testing.T) {
	r := newGateRouter(&fakeSessions{err: errors.New("must not be called")}, &fakeDevices{})
	for _, path := range []string{"/login", "/static/app.css", "/api/health"} {
		w := do(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	w := do(r, http.MethodPost, "/api/client/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateUIRedirectsToLogin(t *testing.T) {
	r := newGateRouter(validSessions(), &fakeDevices{})

	w := do(r, http.MethodGet, "/devices?store=STI", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fdevices%3Fstore%3DSTI", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/devices", withCookie("stale"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session=;")

	w = do(r, http.MethodGet, "/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"alice"`)
}

func TestGateUIRejectsBearerOnly(t *testing.T) {
	r := newGateRouter(validSessions(), &fakeDevices{})
	w := do(r, http.MethodGet, "/devices", withBearer("user-token"))
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestGateAPIReturnsJSON401(t *testing.T) {
	r := newGateRouter(validSessions(), &fakeDevices{})

	w := do(r, http.MethodGet, "/api/devices", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/api/devices", withBearer("nope"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/devices", withBearer("user-token"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateFailsClosed(t *testing.T) {
	r := newGateRouter(&fakeSessions{err: errors.New("db down")}, &fakeDevices{err: errors.New("db down")})

	w := do(r, http.MethodGet, "/api/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	w = do(r, http.MethodGet, "/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")

	w = do(r, http.MethodGet, "/api/client/playlists", withBearer("key"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	r = newGateRouter(&fakeSessions{panics: true}, &fakeDevices{})
	w = do(r, http.MethodGet, "/api/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGateNilVerifierFailsClosed(t *testing.T) {
	gate := NewGate(DefaultPolicy(), nil, nil, CookieConfig{})
	r := gin.New()
	r.Use(gate.Middleware())
	r.GET("/api/devices", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/api/devices", withCookie("user-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGateDeviceBearer(t *testing.T) {
	devices := &fakeDevices{devices: map[string]*model.Device{"api-key-1": {DeviceID: "pi-001", IsActive: true}}}
	r := newGateRouter(validSessions(), devices)

	w := do(r, http.MethodGet, "/api/client/playlists", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// session tokens are not device credentials
	w = do(r, http.MethodGet, "/api/client/playlists", withCookie("user-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/client/playlists", withBearer("api-key-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"device":"pi-001"`)
}

func TestRequireAdmin(t *testing.T) {
	r := newGateRouter(validSessions(), &fakeDevices{})

	w := do(r, http.MethodGet, "/api/users", withCookie("user-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/api/users", withCookie("admin-token"))
	assert.Equal(t, http.StatusOK, w.Code)
}
