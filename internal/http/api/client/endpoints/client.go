package endpoints

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/client/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/metrics"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

type Resolver interface {
	ResolvePlaylistsForDevice(ctx context.Context, device *model.Device) ([]model.Playlist, error)
}

type Authenticator interface {
	Login(ctx context.Context, deviceID, apiKey string) (string, *model.Device, error)
	TokenTTL() time.Duration
}

type ClientController struct {
	store    db.Store
	auth     Authenticator
	resolver Resolver
	storage  storage.Storage
	cache    redis.ETagCache
	now      func() time.Time
}

func NewClientController(store db.Store, auth Authenticator, resolver Resolver, files storage.Storage, cache redis.ETagCache) *ClientController {
	if cache == nil {
		cache = redis.NewMemoryETagCache()
	}
	return &ClientController{store: store, auth: auth, resolver: resolver, storage: files, cache: cache, now: time.Now}
}

// ClientModule mounts the device API under /api/client. Login is public;
// everything else needs a device bearer token.
func ClientModule(ctl *ClientController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/login", ctl.login)

		c.DEVICE_GET("/playlists", 				ctl.getPlaylists)
		c.DEVICE_GET("/videos/:id/download", 	ctl.downloadVideo)
		c.DEVICE_POST("/status", 				ctl.reportStatus)
		c.DEVICE_POST("/ping", 					ctl.ping)
	})
}

// POST /api/client/login
func (c *ClientController) login(ctx *gin.Context) (any, *api.APIError) {
	var req packets.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	token, dev, err := c.auth.Login(ctx.Request.Context(), strings.TrimSpace(req.DeviceID), req.APIKey)
	if err != nil {
		if errs.KindOf(err) == errs.KindInvalidCredentials {
			return nil, &api.APIError{Code: http.StatusUnauthorized, Message: "invalid device credentials"}
		}
		return nil, api.FromError(err)
	}
	log.Info().Str("device_id", dev.DeviceID).Str("ip", ctx.ClientIP()).Msg("[client] device logged in")
	return packets.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(c.auth.TokenTTL().Seconds()),
		DeviceID:    dev.DeviceID,
	}, nil
}

// etagMatches implements the If-None-Match list and wildcard forms.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func downloadURL(videoID int) string {
	return "/api/client/videos/" + strconv.Itoa(videoID) + "/download"
}

func toPlaylistResponses(playlists []model.Playlist) []packets.PlaylistResponse {
	out := make([]packets.PlaylistResponse, 0, len(playlists))
	for _, p := range playlists {
		resp := packets.PlaylistResponse{
			ID:             p.ID,
			Title:          p.Title,
			Description:    p.Description,
			StartDate:      p.StartDate,
			ExpirationDate: p.ExpirationDate,
			StoreCode:      p.StoreCode,
			UpdatedAt:      p.UpdatedAt,
			Videos:         make([]packets.VideoResponse, 0, len(p.Videos)),
		}
		for _, e := range p.Videos {
			v := packets.VideoResponse{ID: e.VideoID, Position: e.Position, DownloadURL: downloadURL(e.VideoID)}
			if e.Video != nil {
				v.Title = e.Video.Title
				v.Duration = e.Video.Duration
				v.FileSize = e.Video.FileSize
				v.Filename = filepath.Base(e.Video.FilePath)
				v.Expires = e.Video.ExpirationDate
			}
			resp.Videos = append(resp.Videos, v)
		}
		out = append(out, resp)
	}
	return out
}

// GET /api/client/playlists answers 304 when If-None-Match carries the current fingerprint.
func (c *ClientController) getPlaylists(ctx *gin.Context, dev *model.Device) (any, *api.APIError) {
	reqCtx := ctx.Request.Context()
	playlists, err := c.resolver.ResolvePlaylistsForDevice(reqCtx, dev)
	if err != nil {
		return nil, api.FromError(err)
	}
	etag := device.Fingerprint(playlists)
	if err := c.cache.Set(reqCtx, dev.DeviceID, etag); err != nil {
		log.Warn().Err(err).Str("device_id", dev.DeviceID).Msg("[client] could not cache playlist ETag")
	}
	if err := c.store.TouchDevice(reqCtx, dev.DeviceID, c.now()); err != nil {
		log.Warn().Err(err).Str("device_id", dev.DeviceID).Msg("[client] could not update last_seen")
	}

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "no-cache")
	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		return api.Response{Status: http.StatusNotModified}, nil
	}

	return packets.PlaylistsResponse{
		DeviceID:    dev.DeviceID,
		StoreCode:   dev.StoreCode,
		ETag:        etag,
		GeneratedAt: c.now().UTC(),
		Playlists:   toPlaylistResponses(playlists),
	}, nil
}

// deliverable reports whether videoID is in one of the playlists the device
// would receive right now.
func (c *ClientController) deliverable(ctx context.Context, dev *model.Device, videoID int) (*model.Video, error) {
	assigned, err := c.store.IsVideoAssigned(ctx, dev.DeviceID, videoID)
	if err != nil || !assigned {
		return nil, err
	}
	playlists, err := c.resolver.ResolvePlaylistsForDevice(ctx, dev)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		for _, e := range p.Videos {
			if e.VideoID == videoID && e.Video != nil {
				return e.Video, nil
			}
		}
	}
	return nil, nil
}

// GET /api/client/videos/:id/download
func (c *ClientController) downloadVideo(ctx *gin.Context, dev *model.Device) (any, *api.APIError) {
	videoID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || videoID <= 0 {
		return nil, api.BadRequest("invalid video id")
	}
	video, err := c.deliverable(ctx.Request.Context(), dev, videoID)
	if err != nil {
		return nil, api.FromError(err)
	}
	// unassigned and nonexistent look the same to the device
	if video == nil {
		log.Warn().Str("device_id", dev.DeviceID).Int("video_id", videoID).Msg("[client] download refused")
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "video not found"}
	}
	return nil, api.ServeVideo(ctx, c.storage, video)
}

// POST /api/client/status
func (c *ClientController) reportStatus(ctx *gin.Context, dev *model.Device) (any, *api.APIError) {
	var req packets.StatusReport
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	st := model.DeviceStatus{
		CPUTemp:        req.CPUTemp,
		MemoryUsage:    req.MemoryUsage,
		DiskUsage:      req.DiskUsage,
		VideoloopState: req.VideoloopStatus,
		KioskState:     req.KioskStatus,
		IPAddressLAN:   req.IPAddressLAN,
		IPAddressWifi:  req.IPAddressWifi,
	}
	if err := c.store.UpdateDeviceStatus(ctx.Request.Context(), dev.DeviceID, st, c.now()); err != nil {
		return nil, api.FromError(err)
	}
	metrics.DeviceReports.Inc()
	return gin.H{"status": "ok"}, nil
}

// POST /api/client/ping
func (c *ClientController) ping(ctx *gin.Context, dev *model.Device) (any, *api.APIError) {
	now := c.now()
	if err := c.store.TouchDevice(ctx.Request.Context(), dev.DeviceID, now); err != nil {
		return nil, api.FromError(err)
	}
	return packets.PingResponse{Status: "ok", DeviceID: dev.DeviceID, ServerTime: now.UTC()}, nil
}
