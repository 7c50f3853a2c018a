package endpoints

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
)

type StoreController struct {
	*Deps
}

// StoreModule mounts /stores. Reads are open to every user; mount writes
// through StoreAdminModule in an AdminOnly group.
func StoreModule(deps *Deps) api.Module {
	ctl := &StoreController{Deps: deps}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/stores", 		ctl.listStores)
		c.GET("/stores/:id", 	ctl.getStore)
	})
}

func StoreAdminModule(deps *Deps) api.Module {
	ctl := &StoreController{Deps: deps}
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/stores", 			ctl.createStore)
		c.PUT("/stores/:id", 		ctl.updateStore)
		c.DELETE("/stores/:id", 	ctl.deleteStore)
	})
}

// GET /api/stores?search=
func (s *StoreController) listStores(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	search := strings.TrimSpace(ctx.Query("search"))
	stores, err := s.Store.ListStores(ctx.Request.Context(), search)
	if err != nil {
		return nil, api.FromError(err)
	}
	total, err := s.Store.CountStores(ctx.Request.Context(), search)
	if err != nil {
		return nil, api.FromError(err)
	}
	if stores == nil {
		stores = []model.Store{}
	}
	return packets.StoreListResponse{Stores: stores, Total: total}, nil
}

// GET /api/stores/:id
func (s *StoreController) getStore(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	st, err := s.Store.GetStoreByID(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return st, nil
}

// POST /api/stores
func (s *StoreController) createStore(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	var req packets.CreateStoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	code := playlist.NormalizeStoreCode(req.Code)
	st, err := s.Store.CreateStore(ctx.Request.Context(), code, strings.TrimSpace(req.Location))
	if err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Str("code", st.Code).Int("by", principal.UserID).Msg("[stores] store created")
	return api.Created(st), nil
}

// PUT /api/stores/:id
func (s *StoreController) updateStore(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.UpdateStoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	var code, location *string
	if req.Code != nil {
		normalized := playlist.NormalizeStoreCode(*req.Code)
		if normalized == "" {
			return nil, api.BadRequest("store code cannot be empty")
		}
		code = &normalized
	}
	if req.Location != nil {
		trimmed := strings.TrimSpace(*req.Location)
		location = &trimmed
	}

	reqCtx := ctx.Request.Context()
	if err := s.Store.UpdateStore(reqCtx, id, code, location); err != nil {
		return nil, api.FromError(err)
	}
	st, err := s.Store.GetStoreByID(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return st, nil
}

// DELETE /api/stores/:id
func (s *StoreController) deleteStore(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := s.Store.DeleteStore(ctx.Request.Context(), id); err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Int("store_id", id).Int("by", principal.UserID).Msg("[stores] store deleted")
	return nil, nil
}
