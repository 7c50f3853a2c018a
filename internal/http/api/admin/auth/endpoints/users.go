package endpoints

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/auth/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

// UserAdminModule mounts /users; mount it in an AdminOnly group.
func UserAdminModule(svc *auth.Service, store db.Store) api.Module {
	ctl := &UserManager{auth: svc, store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/users", 					ctl.listUsers)
		c.POST("/users", 					ctl.createUser)
		c.GET("/users/:id", 				ctl.getUser)
		c.PUT("/users/:id", 				ctl.updateUser)
		c.PUT("/users/:id/password", 		ctl.resetPassword)
		c.DELETE("/users/:id/sessions", 	ctl.revokeSessions)
	})
}

type UserManager struct {
	auth  *auth.Service
	store db.Store
}

func userID(ctx *gin.Context) (int, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, api.BadRequest("invalid user id")
	}
	return id, nil
}

// GET /api/users
func (m *UserManager) listUsers(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	users, err := m.store.ListUsers(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.ProfileResponse, 0, len(users))
	for i := range users {
		out = append(out, toProfile(&users[i]))
	}
	return out, nil
}

// POST /api/users
func (m *UserManager) createUser(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	var request packets.CreateUserRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BindError(err)
	}

	user := &model.User{
		Username:     strings.TrimSpace(request.Username),
		Email:        request.Email,
		FullName:     request.FullName,
		Department:   request.Department,
		IsAdmin:      request.IsAdmin,
		IsActive:     true,
		AuthProvider: model.AuthProviderLocal,
	}

	if request.AuthProvider == model.AuthProviderAD {
		if request.Password != "" {
			return nil, api.BadRequest("directory accounts cannot have a local password")
		}
		user.AuthProvider = model.AuthProviderAD
		user.ADDN = request.ADDN
	} else {
		if err := auth.ValidatePassword(request.Password); err != nil {
			return nil, api.FromError(err)
		}
		hash, err := auth.HashPassword(request.Password)
		if err != nil {
			return nil, api.FromError(err)
		}
		user.PasswordHash = &hash
	}

	id, err := m.store.CreateUser(ctx.Request.Context(), user)
	if err != nil {
		return nil, api.FromError(err)
	}
	created, err := m.store.GetUserByID(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}

	log.Info().Int("user_id", id).Str("username", user.Username).Str("provider", user.AuthProvider).
		Int("created_by", principal.UserID).Msg("[users] user created")
	return api.Created(toProfile(created)), nil
}

// GET /api/users/:id
func (m *UserManager) getUser(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := userID(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	user, err := m.store.GetUserByID(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return toProfile(user), nil
}

// PUT /api/users/:id
func (m *UserManager) updateUser(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, apiErr := userID(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateUserRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BindError(err)
	}

	// an admin cannot lock themselves out
	if id == principal.UserID {
		if request.IsActive != nil && !*request.IsActive {
			return nil, api.BadRequest("you cannot deactivate your own account")
		}
		if request.IsAdmin != nil && !*request.IsAdmin {
			return nil, api.BadRequest("you cannot remove your own admin rights")
		}
	}

	upd := db.UserUpdate{
		Email:      request.Email,
		FullName:   request.FullName,
		Department: request.Department,
		IsAdmin:    request.IsAdmin,
	}
	deactivate := request.IsActive != nil && !*request.IsActive
	if !deactivate {
		upd.IsActive = request.IsActive
	}

	reqCtx := ctx.Request.Context()
	if err := m.store.UpdateUser(reqCtx, id, upd); err != nil {
		return nil, api.FromError(err)
	}
	if deactivate {
		if err := m.auth.Deactivate(reqCtx, id); err != nil {
			return nil, api.FromError(err)
		}
		log.Info().Int("user_id", id).Int("by", principal.UserID).Msg("[users] user deactivated")
	}

	user, err := m.store.GetUserByID(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return toProfile(user), nil
}

// PUT /api/users/:id/password
func (m *UserManager) resetPassword(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, apiErr := userID(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BindError(err)
	}

	user, err := m.store.GetUserByID(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	if user.AuthProvider == model.AuthProviderAD {
		return nil, api.BadRequest("password for directory accounts is managed by the directory")
	}
	if err := m.auth.SetPassword(ctx.Request.Context(), id, request.Password); err != nil {
		return nil, api.FromError(err)
	}

	log.Info().Int("user_id", id).Int("by", principal.UserID).Msg("[users] password reset")
	return gin.H{"success": true}, nil
}

// DELETE /api/users/:id/sessions
func (m *UserManager) revokeSessions(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := userID(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	if _, err := m.store.GetUserByID(ctx.Request.Context(), id); err != nil {
		return nil, api.FromError(err)
	}
	n, err := m.auth.RevokeAllSessions(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return gin.H{"revoked": n}, nil
}
