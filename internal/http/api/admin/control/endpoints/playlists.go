package endpoints

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
)

type PlaylistController struct {
	*Deps
}

// PlaylistModule mounts all authenticated /playlists endpoints.
func PlaylistModule(deps *Deps) api.Module {
	ctl := &PlaylistController{Deps: deps}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/playlists", 		ctl.listPlaylists)
		c.POST("/playlists", 		ctl.createPlaylist)
		c.GET("/playlists/:id", 	ctl.getPlaylist)
		c.PUT("/playlists/:id", 	ctl.updatePlaylist)
		c.DELETE("/playlists/:id", 	ctl.deletePlaylist)

		c.POST("/playlists/:id/publish", 	ctl.publishPlaylist)
		c.POST("/playlists/:id/unpublish", 	ctl.unpublishPlaylist)

		c.GET("/playlists/:id/videos", 				ctl.listVideos)
		c.POST("/playlists/:id/videos", 			ctl.addVideo)
		c.PUT("/playlists/:id/videos", 				ctl.reorderVideos)
		c.DELETE("/playlists/:id/videos/:video_id", ctl.removeVideo)

		c.GET("/playlists/:id/devices", 	ctl.listDevices)
		c.POST("/playlists/:id/devices", 	ctl.assignDevices)
	})
}

func (p *PlaylistController) toResponse(ctx *gin.Context, pl *model.Playlist) (packets.PlaylistResponse, error) {
	reqCtx := ctx.Request.Context()
	out := packets.PlaylistResponse{Playlist: *pl, Active: playlist.IsPlaylistActive(pl, p.now())}
	if pl.Videos == nil {
		entries, err := p.Store.ListPlaylistVideos(reqCtx, pl.ID)
		if err != nil {
			return out, err
		}
		out.VideoCount = len(entries)
	} else {
		out.VideoCount = len(pl.Videos)
	}
	devices, err := p.Store.ListDeviceIDsForPlaylist(reqCtx, pl.ID)
	if err != nil {
		return out, err
	}
	out.DeviceCount = len(devices)
	return out, nil
}

func (p *PlaylistController) loadPlaylist(ctx *gin.Context) (*model.Playlist, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	pl, err := p.Store.GetPlaylist(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return pl, nil
}

// GET /api/playlists?store_code=&search=&active_only=
func (p *PlaylistController) listPlaylists(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	filter := db.PlaylistFilter{
		Search:     strings.TrimSpace(ctx.Query("search")),
		ActiveOnly: ctx.Query("active_only") == "true",
		Now:        p.now(),
	}
	if code := playlist.NormalizeStoreCode(ctx.Query("store_code")); code != "" {
		filter.StoreCode = &code
	}
	all, err := p.Store.ListPlaylists(ctx.Request.Context(), filter)
	if err != nil {
		return nil, api.FromError(err)
	}

	out := make([]packets.PlaylistResponse, 0, len(all))
	for i := range all {
		resp, err := p.toResponse(ctx, &all[i])
		if err != nil {
			return nil, api.FromError(err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// POST /api/playlists
func (p *PlaylistController) createPlaylist(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	var req packets.CreatePlaylistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	start, apiErr := parseDate("start_date", req.StartDate)
	if apiErr != nil {
		return nil, apiErr
	}
	expiration, apiErr := parseDate("expiration_date", req.ExpirationDate)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := playlist.ValidateWindow(start, expiration); err != nil {
		return nil, api.FromError(err)
	}
	reqCtx := ctx.Request.Context()
	storeCode, err := p.Playlists.ValidateStoreCode(reqCtx, req.StoreCode)
	if err != nil {
		return nil, api.FromError(err)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	created, err := p.Store.CreatePlaylist(reqCtx, &model.Playlist{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		StartDate:      start,
		ExpirationDate: expiration,
		IsActive:       active,
		StoreCode:      storeCode,
	})
	if err != nil {
		return nil, api.FromError(err)
	}

	log.Info().Int("playlist_id", created.ID).Int("by", principal.UserID).Msg("[playlists] playlist created")
	return api.Created(packets.PlaylistResponse{Playlist: *created, Active: playlist.IsPlaylistActive(created, p.now())}), nil
}

// GET /api/playlists/:id includes the ordered videos.
func (p *PlaylistController) getPlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	pl, apiErr := p.loadPlaylist(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	entries, err := p.Store.ListPlaylistVideos(ctx.Request.Context(), pl.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	pl.Videos = entries
	if pl.Videos == nil {
		pl.Videos = []model.PlaylistVideo{}
	}
	resp, err := p.toResponse(ctx, pl)
	if err != nil {
		return nil, api.FromError(err)
	}
	return resp, nil
}

// PUT /api/playlists/:id
func (p *PlaylistController) updatePlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	pl, apiErr := p.loadPlaylist(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.UpdatePlaylistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, api.BadRequest("title cannot be empty")
	}
	start, clearStart, apiErr := parseDateUpdate("start_date", req.StartDate)
	if apiErr != nil {
		return nil, apiErr
	}
	expiration, clearExpiration, apiErr := parseDateUpdate("expiration_date", req.ExpirationDate)
	if apiErr != nil {
		return nil, apiErr
	}

	// the window is checked as it will be after the update
	effStart, effExpiration := pl.StartDate, pl.ExpirationDate
	if req.StartDate != nil {
		effStart = start
	}
	if req.ExpirationDate != nil {
		effExpiration = expiration
	}
	if err := playlist.ValidateWindow(effStart, effExpiration); err != nil {
		return nil, api.FromError(err)
	}

	reqCtx := ctx.Request.Context()
	upd := db.PlaylistUpdate{
		Title:           req.Title,
		Description:     req.Description,
		StartDate:       start,
		ClearStartDate:  clearStart,
		ExpirationDate:  expiration,
		ClearExpiration: clearExpiration,
		IsActive:        req.IsActive,
	}
	if req.StoreCode != nil {
		code, err := p.Playlists.ValidateStoreCode(reqCtx, *req.StoreCode)
		if err != nil {
			return nil, api.FromError(err)
		}
		cleared := ""
		if code == nil {
			code = &cleared
		}
		upd.StoreCode = code
	}

	if err := p.Store.UpdatePlaylist(reqCtx, pl.ID, upd); err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.PlaylistChanged(reqCtx, pl.ID)

	updated, err := p.Store.GetPlaylist(reqCtx, pl.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	resp, err := p.toResponse(ctx, updated)
	if err != nil {
		return nil, api.FromError(err)
	}
	return resp, nil
}

// DELETE /api/playlists/:id
func (p *PlaylistController) deletePlaylist(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()

	// assignments cascade away with the row, so collect them first
	deviceIDs, err := p.Store.ListDeviceIDsForPlaylist(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	if err := p.Store.DeletePlaylist(reqCtx, id); err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.DevicesChanged(reqCtx, deviceIDs...)

	log.Info().Int("playlist_id", id).Int("devices", len(deviceIDs)).Int("by", principal.UserID).
		Msg("[playlists] playlist deleted")
	return nil, nil
}

func (p *PlaylistController) setActive(ctx *gin.Context, active bool) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()
	if err := p.Store.UpdatePlaylist(reqCtx, id, db.PlaylistUpdate{IsActive: &active}); err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.PlaylistChanged(reqCtx, id)
	return gin.H{"id": id, "is_active": active}, nil
}

// POST /api/playlists/:id/publish
func (p *PlaylistController) publishPlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	return p.setActive(ctx, true)
}

// POST /api/playlists/:id/unpublish
func (p *PlaylistController) unpublishPlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	return p.setActive(ctx, false)
}

// GET /api/playlists/:id/videos
func (p *PlaylistController) listVideos(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, err := p.Store.GetPlaylist(ctx.Request.Context(), id); err != nil {
		return nil, api.FromError(err)
	}
	entries, err := p.Store.ListPlaylistVideos(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.PlaylistVideoResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, packets.PlaylistVideoResponse{VideoID: e.VideoID, Position: e.Position, Video: e.Video})
	}
	return out, nil
}

// POST /api/playlists/:id/videos appends a video.
func (p *PlaylistController) addVideo(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.AddPlaylistVideoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	position, err := p.Playlists.AddVideoToPlaylist(ctx.Request.Context(), id, req.VideoID)
	if err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.PlaylistChanged(ctx.Request.Context(), id)
	return api.Created(packets.PlaylistVideoResponse{VideoID: req.VideoID, Position: position}), nil
}

// DELETE /api/playlists/:id/videos/:video_id
func (p *PlaylistController) removeVideo(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	videoID, apiErr := intParam(ctx, "video_id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := p.Playlists.RemoveVideoFromPlaylist(ctx.Request.Context(), id, videoID); err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.PlaylistChanged(ctx.Request.Context(), id)
	return nil, nil
}

// PUT /api/playlists/:id/videos sets the full order.
func (p *PlaylistController) reorderVideos(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.ReorderPlaylistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	if err := p.Playlists.ReorderPlaylist(ctx.Request.Context(), id, req.VideoIDs); err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.PlaylistChanged(ctx.Request.Context(), id)
	return gin.H{"id": id, "video_ids": req.VideoIDs}, nil
}

// GET /api/playlists/:id/devices
func (p *PlaylistController) listDevices(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()
	if _, err := p.Store.GetPlaylist(reqCtx, id); err != nil {
		return nil, api.FromError(err)
	}
	ids, err := p.Store.ListDeviceIDsForPlaylist(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]model.Device, 0, len(ids))
	for _, deviceID := range ids {
		dev, err := p.Store.GetDeviceByDeviceID(reqCtx, deviceID)
		if err != nil {
			return nil, api.FromError(err)
		}
		out = append(out, *dev)
	}
	return out, nil
}

// POST /api/playlists/:id/devices assigns the playlist to several devices at once.
// Every device must exist and be compatible or nothing is assigned.
func (p *PlaylistController) assignDevices(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	pl, apiErr := p.loadPlaylist(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.AssignDevicesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	reqCtx := ctx.Request.Context()

	for _, deviceID := range req.DeviceIDs {
		dev, err := p.Store.GetDeviceByDeviceID(reqCtx, deviceID)
		if err != nil {
			return nil, api.FromError(err)
		}
		if !playlist.IsCompatible(pl.StoreCode, dev.StoreCode) {
			return nil, api.BadRequest("device " + deviceID + " belongs to another store")
		}
	}
	err := p.Store.AssignPlaylistToDevices(reqCtx, pl.ID, req.DeviceIDs,
		func(locked *model.Playlist, dev *model.Device) error {
			if !playlist.IsCompatible(locked.StoreCode, dev.StoreCode) {
				return errs.Validation("device %s belongs to another store", dev.DeviceID)
			}
			return nil
		})
	if err != nil {
		return nil, api.FromError(err)
	}
	p.Notifier.DevicesChanged(reqCtx, req.DeviceIDs...)
	return gin.H{"playlist_id": pl.ID, "assigned": len(req.DeviceIDs)}, nil
}
