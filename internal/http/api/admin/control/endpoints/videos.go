package endpoints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

type VideoController struct {
	*Deps
	maxUpload int64
}

// VideoModule mounts /videos. maxUpload is the largest accepted file in bytes.
func VideoModule(deps *Deps, maxUpload int64) api.Module {
	ctl := &VideoController{Deps: deps, maxUpload: maxUpload}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/videos", 				ctl.listVideos)
		c.POST("/videos", 				ctl.uploadVideo)
		c.GET("/videos/:id", 			ctl.getVideo)
		c.PUT("/videos/:id", 			ctl.updateVideo)
		c.DELETE("/videos/:id", 		ctl.deleteVideo)
		c.GET("/videos/:id/stream", 	ctl.streamVideo)
	})
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// GET /api/videos?search=&active_only=
func (v *VideoController) listVideos(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	videos, err := v.Store.ListVideos(ctx.Request.Context(), db.VideoFilter{
		Search:     strings.TrimSpace(ctx.Query("search")),
		ActiveOnly: ctx.Query("active_only") == "true",
		Now:        v.now(),
	})
	if err != nil {
		return nil, api.FromError(err)
	}
	if videos == nil {
		videos = []model.Video{}
	}
	return videos, nil
}

// POST /api/videos (multipart/form-data)
func (v *VideoController) uploadVideo(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, api.BadRequest("video file is required")
	}
	if !storage.IsVideoFile(fileHeader.Filename) {
		return nil, api.BadRequest("unsupported file type; allowed: mp4, webm, avi, mov, mkv, m4v")
	}
	if v.maxUpload > 0 && fileHeader.Size > v.maxUpload {
		return nil, &api.APIError{Code: http.StatusRequestEntityTooLarge, Message: "video file is too large"}
	}

	var form packets.UploadVideoForm
	if err := ctx.ShouldBind(&form); err != nil {
		return nil, api.BindError(err)
	}
	expiration, apiErr := parseDate("expiration_date", form.ExpirationDate)
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()

	path, err := v.Storage.SaveFile(reqCtx, fileHeader, fileHeader.Filename)
	if err != nil {
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("[videos] upload: could not store file")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not store video file"}
	}

	created, err := v.Store.CreateVideo(reqCtx, &model.Video{
		Title:          strings.TrimSpace(form.Title),
		Description:    optional(form.Description),
		FilePath:       path,
		FileSize:       fileHeader.Size,
		Duration:       form.Duration,
		ExpirationDate: expiration,
		Tags:           optional(form.Tags),
		IsActive:       true,
	})
	if err != nil {
		if delErr := v.Storage.Delete(reqCtx, path); delErr != nil {
			log.Warn().Err(delErr).Str("path", path).Msg("[videos] upload: could not remove orphaned file")
		}
		return nil, api.FromError(err)
	}

	log.Info().Int("video_id", created.ID).Int64("size", created.FileSize).Int("by", principal.UserID).
		Msg("[videos] video uploaded")
	return api.Created(created), nil
}

func (v *VideoController) loadVideo(ctx *gin.Context) (*model.Video, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	video, err := v.Store.GetVideo(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return video, nil
}

// GET /api/videos/:id
func (v *VideoController) getVideo(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	video, apiErr := v.loadVideo(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	playlistIDs, err := v.Store.ListPlaylistIDsForVideo(ctx.Request.Context(), video.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	if playlistIDs == nil {
		playlistIDs = []int{}
	}
	return gin.H{"video": video, "playlist_ids": playlistIDs}, nil
}

// PUT /api/videos/:id
func (v *VideoController) updateVideo(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	video, apiErr := v.loadVideo(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.UpdateVideoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	expiration, clearExpiration, apiErr := parseDateUpdate("expiration_date", req.ExpirationDate)
	if apiErr != nil {
		return nil, apiErr
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, api.BadRequest("title cannot be empty")
	}
	reqCtx := ctx.Request.Context()

	upd := db.VideoUpdate{
		Title:           req.Title,
		Description:     req.Description,
		Tags:            req.Tags,
		Duration:        req.Duration,
		IsActive:        req.IsActive,
		ExpirationDate:  expiration,
		ClearExpiration: clearExpiration,
	}
	if err := v.Store.UpdateVideo(reqCtx, video.ID, upd); err != nil {
		return nil, api.FromError(err)
	}
	// playability changed: devices holding it need a fresh list
	if req.IsActive != nil || req.ExpirationDate != nil {
		v.notifyPlaylistsOf(ctx, video.ID)
	}

	updated, err := v.Store.GetVideo(reqCtx, video.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return updated, nil
}

// DELETE /api/videos/:id removes the row first, then the file (best effort).
func (v *VideoController) deleteVideo(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	id, apiErr := intParam(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()

	playlistIDs, err := v.Store.ListPlaylistIDsForVideo(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	deleted, err := v.Store.DeleteVideo(reqCtx, id)
	if err != nil {
		return nil, api.FromError(err)
	}

	if err := v.Storage.Delete(reqCtx, deleted.FilePath); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			log.Warn().Int("video_id", id).Str("path", deleted.FilePath).Msg("[videos] delete: file was already gone")
		} else {
			log.Error().Err(err).Int("video_id", id).Str("path", deleted.FilePath).Msg("[videos] delete: could not remove file")
		}
	}
	if len(playlistIDs) > 0 {
		v.Notifier.PlaylistChanged(reqCtx, playlistIDs...)
	}

	log.Info().Int("video_id", id).Int("playlists", len(playlistIDs)).Int("by", principal.UserID).
		Msg("[videos] video deleted")
	return nil, nil
}

// GET /api/videos/:id/stream lets the dashboard preview a video.
func (v *VideoController) streamVideo(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	video, apiErr := v.loadVideo(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return nil, api.ServeVideo(ctx, v.Storage, video)
}

func (v *VideoController) notifyPlaylistsOf(ctx *gin.Context, videoID int) {
	ids, err := v.Store.ListPlaylistIDsForVideo(ctx.Request.Context(), videoID)
	if err != nil {
		log.Error().Err(err).Int("video_id", videoID).Msg("[videos] could not list playlists for notification")
		return
	}
	if len(ids) > 0 {
		v.Notifier.PlaylistChanged(ctx.Request.Context(), ids...)
	}
}
