package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db/dbmock"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
	if err := api.RegisterValidators(); err != nil {
		panic(err)
	}
}

// newRouter mounts every auth module. The principal, when set, stands in for
// what the gate would have resolved from the session.
func newRouter(t *testing.T, principal *auth.Principal) (*gin.Engine, *dbmock.Store) {
	t.Helper()
	store := &dbmock.Store{}
	svc := auth.NewService(store, store, nil, auth.Config{SessionTTL: time.Hour, MaxSessions: 3}).
		WithClock(func() time.Time { return now })
	cookies := middleware.CookieConfig{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if principal != nil {
			middleware.SetCurrentUser(c, principal)
		}
	})
	api.MountGroup(r, api.GroupConfig{Prefix: "/api"},
		AuthLoginModule(svc, store, cookies),
		AuthPublicModule(svc, store, cookies),
		AuthSessionModule(svc, store, cookies),
	)
	api.MountGroup(r, api.GroupConfig{Prefix: "/api", AdminOnly: true}, UserAdminModule(svc, store))
	t.Cleanup(func() { store.AssertExpectations(t) })
	return r, store
}

func send(r *gin.Engine, method, path string, body any, cookie string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func localUser(t *testing.T, id int, username, password string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &model.User{ID: id, Username: username, PasswordHash: &hash, IsActive: true, AuthProvider: model.AuthProviderLocal}
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	r, store := newRouter(t, nil)
	store.On("GetUserByLogin", "alice").Return(localUser(t, 1, "alice", "correct-horse"), nil)
	store.On("TouchLastLogin", 1, now).Return(nil)
	store.On("ListActiveSessions", 1, now).Return([]model.Session{}, nil)
	store.On("InsertSession", mock.MatchedBy(func(s *model.Session) bool {
		return s.UserID == 1 && s.Token != "" && s.ExpiresAt.Equal(now.Add(time.Hour))
	})).Return(nil)

	w := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Contains(t, w.Header().Get("Set-Cookie"), middleware.SessionCookieName+"="+resp.Token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")
}

func TestLoginMatchesUsernameExactly(t *testing.T) {
	r, store := newRouter(t, nil)
	store.On("GetUserByLogin", " alice ").Return(nil, errs.ErrNotFound)
	store.On("GetUserByLogin", "Alice").Return(nil, errs.ErrNotFound)

	w := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": " alice ", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "Alice", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	store.AssertNotCalled(t, "GetUserByLogin", "alice")
}

func TestLoginFailuresLookAlike(t *testing.T) {
	r, store := newRouter(t, nil)
	store.On("GetUserByLogin", "ghost").Return(nil, errs.ErrNotFound)
	store.On("GetUserByLogin", "alice").Return(localUser(t, 1, "alice", "correct-horse"), nil)

	unknown := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "ghost", "password": "whatever1"}, "")
	wrong := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "battery-staple"}, "")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	assert.Empty(t, wrong.Header().Get("Set-Cookie"))
}

func TestLoginDisabledAccount(t *testing.T) {
	r, store := newRouter(t, nil)
	u := localUser(t, 1, "alice", "correct-horse")
	u.IsActive = false
	store.On("GetUserByLogin", "alice").Return(u, nil)

	w := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"account disabled"}`, w.Body.String())
}

func TestLoginStoreFailureIsServerError(t *testing.T) {
	r, store := newRouter(t, nil)
	store.On("GetUserByLogin", "alice").Return(nil, errs.Storage(assert.AnError, "query failed"))

	w := send(r, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	r, store := newRouter(t, nil)
	store.On("RevokeSessionByToken", "tok").Return(true, nil)

	w := send(r, http.MethodPost, "/api/auth/logout", nil, "tok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"revoked":true}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")

	w = send(r, http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"revoked":false}`, w.Body.String())
}

func TestSessionRoutesNeedPrincipal(t *testing.T) {
	r, _ := newRouter(t, nil)
	w := send(r, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListSessionsMarksCurrent(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "alice", SessionID: 5})
	store.On("ListActiveSessions", 1, now).Return([]model.Session{{ID: 5, UserID: 1}, {ID: 6, UserID: 1}}, nil)

	w := send(r, http.MethodGet, "/api/auth/sessions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []struct {
		ID      int  `json:"id"`
		Current bool `json:"current"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.True(t, out[0].Current)
	assert.False(t, out[1].Current)
}

func TestRevokeOnlyOwnSession(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "alice", SessionID: 5})
	store.On("ListActiveSessions", 1, now).Return([]model.Session{{ID: 5, UserID: 1}, {ID: 6, UserID: 1}}, nil)
	store.On("RevokeSessionsByID", []int{6}).Return(1, nil)

	w := send(r, http.MethodDelete, "/api/auth/sessions/9", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodDelete, "/api/auth/sessions/6", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "alice", SessionID: 5})
	store.On("GetUserByID", 1).Return(localUser(t, 1, "alice", "correct-horse"), nil)

	w := send(r, http.MethodPut, "/api/auth/password", gin.H{"current_password": "nope-nope", "new_password": "a-new-password"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"current password is incorrect"}`, w.Body.String())
}

func TestChangePasswordRevokesEverything(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "alice", SessionID: 5})
	store.On("GetUserByID", 1).Return(localUser(t, 1, "alice", "correct-horse"), nil)
	store.On("UpdatePasswordHash", 1, mock.AnythingOfType("string")).Return(nil)
	store.On("RevokeUserSessions", 1).Return(2, nil)

	w := send(r, http.MethodPut, "/api/auth/password", gin.H{"current_password": "correct-horse", "new_password": "a-new-password"}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestUserAdminRequiresAdmin(t *testing.T) {
	r, _ := newRouter(t, &auth.Principal{UserID: 2, Username: "bob"})
	w := send(r, http.MethodGet, "/api/users", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCannotLockThemselvesOut(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "root", IsAdmin: true})

	w := send(r, http.MethodPut, "/api/users/1", gin.H{"is_active": false}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = send(r, http.MethodPut, "/api/users/1", gin.H{"is_admin": false}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
}

func TestDeactivateUserRevokesSessions(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "root", IsAdmin: true})
	inactive := false
	store.On("UpdateUser", 2, db.UserUpdate{}).Return(nil)
	store.On("UpdateUser", 2, db.UserUpdate{IsActive: &inactive}).Return(nil)
	store.On("RevokeUserSessions", 2).Return(3, nil)
	store.On("GetUserByID", 2).Return(&model.User{ID: 2, Username: "bob", AuthProvider: model.AuthProviderLocal}, nil)

	w := send(r, http.MethodPut, "/api/users/2", gin.H{"is_active": false}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCreateUser(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "root", IsAdmin: true})
	store.On("CreateUser", mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "carol" && u.PasswordHash != nil && auth.CheckPassword(*u.PasswordHash, "long-enough-pw")
	})).Return(7, nil)
	store.On("GetUserByID", 7).Return(&model.User{ID: 7, Username: "carol", IsActive: true, AuthProvider: model.AuthProviderLocal}, nil)

	w := send(r, http.MethodPost, "/api/users", gin.H{"username": "carol", "password": "long-enough-pw"}, "")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(r, http.MethodPost, "/api/users", gin.H{"username": "dave"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/api/users", gin.H{"username": "erin", "password": "long-enough-pw", "auth_provider": "ad"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/api/users", gin.H{"username": "frank", "auth_provider": "oauth"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetPasswordRefusedForDirectoryAccounts(t *testing.T) {
	r, store := newRouter(t, &auth.Principal{UserID: 1, Username: "root", IsAdmin: true})
	store.On("GetUserByID", 3).Return(&model.User{ID: 3, Username: "dir", AuthProvider: model.AuthProviderAD, IsActive: true}, nil)

	w := send(r, http.MethodPut, "/api/users/3/password", gin.H{"password": "long-enough-pw"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything)
}
