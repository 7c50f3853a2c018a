package endpoints

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/auth/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

// AuthLoginModule mounts POST /auth/login. It sits in its own group so the
// login rate limiter only covers this route.
func AuthLoginModule(svc *auth.Service, store db.Store, cookies middleware.CookieConfig) api.Module {
	ctl := newAccountManager(svc, store, cookies)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/login", ctl.userLogin)
	})
}

// AuthPublicModule mounts endpoints that work with or without a valid session.
func AuthPublicModule(svc *auth.Service, store db.Store, cookies middleware.CookieConfig) api.Module {
	ctl := newAccountManager(svc, store, cookies)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/logout", ctl.userLogout)
	})
}

// AuthSessionModule mounts profile and session endpoints (session required).
func AuthSessionModule(svc *auth.Service, store db.Store, cookies middleware.CookieConfig) api.Module {
	ctl := newAccountManager(svc, store, cookies)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/me", 				ctl.getCurrentProfile)
		c.PUT("/auth/password", 		ctl.changePassword)
		c.GET("/auth/sessions", 		ctl.listSessions)
		c.DELETE("/auth/sessions", 		ctl.revokeAllSessions)
		c.DELETE("/auth/sessions/:id", 	ctl.revokeSession)
	})
}

type AccountManager struct {
	auth    *auth.Service
	store   db.Store
	cookies middleware.CookieConfig
}

func newAccountManager(svc *auth.Service, store db.Store, cookies middleware.CookieConfig) *AccountManager {
	if cookies.TTL <= 0 {
		cookies.TTL = svc.SessionTTL()
	}
	return &AccountManager{auth: svc, store: store, cookies: cookies}
}

// LoginError hides whether the account exists.
func LoginError(err error) *api.APIError {
	switch errs.KindOf(err) {
	case errs.KindNotFound, errs.KindInvalidCredentials:
		return &api.APIError{Code: http.StatusUnauthorized, Message: "invalid credentials"}
	case errs.KindAccountDisabled:
		return &api.APIError{Code: http.StatusUnauthorized, Message: "account disabled"}
	}
	return api.FromError(err)
}

func toProfile(u *model.User) packets.ProfileResponse {
	return packets.ProfileResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Department:   u.Department,
		IsAdmin:      u.IsAdmin,
		IsActive:     u.IsActive,
		AuthProvider: u.AuthProvider,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

// POST /api/auth/login
func (a *AccountManager) userLogin(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BindError(err)
	}

	user, err := a.auth.Authenticate(ctx.Request.Context(), request.Username, request.Password)
	if err != nil {
		log.Info().Str("login", request.Username).Str("ip", ctx.ClientIP()).Str("reason", errs.KindOf(err).String()).
			Msg("[auth] login refused")
		return nil, LoginError(err)
	}

	sess, err := a.auth.CreateSession(ctx.Request.Context(), user.ID, ctx.ClientIP(), ctx.Request.UserAgent(), 0)
	if err != nil {
		return nil, api.FromError(err)
	}
	middleware.SetSessionCookie(ctx, a.cookies, sess.Token)

	log.Info().Int("user_id", user.ID).Str("ip", ctx.ClientIP()).Msg("[auth] user logged in")
	return packets.LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: toProfile(user)}, nil
}

// POST /api/auth/logout
func (a *AccountManager) userLogout(ctx *gin.Context) (any, *api.APIError) {
	token, _ := middleware.SessionToken(ctx)
	revoked, err := a.auth.RevokeSession(ctx.Request.Context(), token)
	if err != nil {
		// the cookie still goes; the sweeper will catch the row
		log.Error().Err(err).Msg("[auth] logout: could not revoke session")
	}
	middleware.ClearSessionCookie(ctx, a.cookies)
	return gin.H{"success": true, "revoked": revoked}, nil
}

// GET /api/auth/me
func (a *AccountManager) getCurrentProfile(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	user, err := a.store.GetUserByID(ctx.Request.Context(), principal.UserID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return toProfile(user), nil
}

// PUT /api/auth/password
func (a *AccountManager) changePassword(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	var request packets.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BindError(err)
	}
	err := a.auth.ChangePassword(ctx.Request.Context(), principal.UserID, request.CurrentPassword, request.NewPassword)
	if err != nil {
		if errs.KindOf(err) == errs.KindInvalidCredentials {
			return nil, api.BadRequest("current password is incorrect")
		}
		return nil, api.FromError(err)
	}
	// every session was revoked, including this one
	middleware.ClearSessionCookie(ctx, a.cookies)
	return gin.H{"success": true}, nil
}

// GET /api/auth/sessions
func (a *AccountManager) listSessions(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	sessions, err := a.auth.ListSessions(ctx.Request.Context(), principal.UserID)
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, packets.SessionResponse{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			Current:      s.ID == principal.SessionID,
		})
	}
	return out, nil
}

// DELETE /api/auth/sessions
func (a *AccountManager) revokeAllSessions(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	n, err := a.auth.RevokeAllSessions(ctx.Request.Context(), principal.UserID)
	if err != nil {
		return nil, api.FromError(err)
	}
	middleware.ClearSessionCookie(ctx, a.cookies)
	return gin.H{"revoked": n}, nil
}

// DELETE /api/auth/sessions/:id
func (a *AccountManager) revokeSession(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, api.BadRequest("invalid session id")
	}
	ok, err := a.auth.RevokeUserSession(ctx.Request.Context(), principal.UserID, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	if !ok {
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "session not found"}
	}
	if id == principal.SessionID {
		middleware.ClearSessionCookie(ctx, a.cookies)
	}
	return nil, nil
}
