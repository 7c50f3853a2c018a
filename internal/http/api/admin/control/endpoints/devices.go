package endpoints

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
)

// a device is shown online when it was seen this recently
const onlineWindow = 10 * time.Minute

type DeviceController struct {
	*Deps
}

// DeviceModule mounts the /devices endpoints and the fleet-wide /ping.
func DeviceModule(deps *Deps) api.Module {
	ctl := &DeviceController{Deps: deps}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/devices", 									ctl.listDevices)
		c.POST("/devices", 									ctl.registerDevice)
		c.GET("/devices/:device_id", 						ctl.getDevice)
		c.PUT("/devices/:device_id", 						ctl.updateDevice)
		c.DELETE("/devices/:device_id", 					ctl.deleteDevice)
		c.POST("/devices/:device_id/api-key", 				ctl.rotateAPIKey)

		c.GET("/devices/:device_id/playlists", 				ctl.listDevicePlaylists)
		c.POST("/devices/:device_id/playlists/:playlist_id", 	ctl.assignPlaylist)
		c.DELETE("/devices/:device_id/playlists/:playlist_id", 	ctl.unassignPlaylist)

		c.GET("/devices/:device_id/ping", 					ctl.pingDevice)
		c.GET("/devices/:device_id/status", 				ctl.deviceStatus)
		c.GET("/devices/:device_id/logs", 					ctl.deviceLogs)
		c.POST("/devices/:device_id/service/:service/:action", 	ctl.serviceAction)
		c.POST("/devices/:device_id/reboot", 				ctl.rebootDevice)

		c.GET("/ping", ctl.pingAll)
	})
}

func (d *DeviceController) toResponse(dev *model.Device) packets.DeviceResponse {
	online := dev.LastSeen != nil && d.now().Sub(*dev.LastSeen) <= onlineWindow
	return packets.DeviceResponse{Device: *dev, HasAPIKey: dev.APIKey != nil && *dev.APIKey != "", Online: online}
}

func (d *DeviceController) loadDevice(ctx *gin.Context) (*model.Device, *api.APIError) {
	deviceID := ctx.Param("device_id")
	if deviceID == "" {
		return nil, api.BadRequest("device id required")
	}
	dev, err := d.Store.GetDeviceByDeviceID(ctx.Request.Context(), deviceID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return dev, nil
}

// GET /api/devices?store_code=&active_only=
func (d *DeviceController) listDevices(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	filter := db.DeviceFilter{ActiveOnly: ctx.Query("active_only") == "true"}
	if code := playlist.NormalizeStoreCode(ctx.Query("store_code")); code != "" {
		filter.StoreCode = &code
	}
	devices, err := d.Store.ListDevices(ctx.Request.Context(), filter)
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.DeviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, d.toResponse(&devices[i]))
	}
	return out, nil
}

// POST /api/devices
func (d *DeviceController) registerDevice(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	var req packets.RegisterDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	reqCtx := ctx.Request.Context()

	mac, err := device.NormalizeMAC(req.MACAddress)
	if err != nil {
		return nil, api.FromError(err)
	}
	storeCode, err := d.Playlists.ValidateStoreCode(reqCtx, req.StoreCode)
	if err != nil {
		return nil, api.FromError(err)
	}
	for _, id := range req.PlaylistIDs {
		pl, err := d.Store.GetPlaylist(reqCtx, id)
		if err != nil {
			return nil, api.FromError(err)
		}
		if !playlist.IsCompatible(pl.StoreCode, storeCode) {
			return nil, api.BadRequest("playlist " + strconv.Itoa(id) + " belongs to another store")
		}
	}

	dev := &model.Device{
		DeviceID:      strings.TrimSpace(req.DeviceID),
		MACAddress:    mac,
		Name:          strings.TrimSpace(req.Name),
		Model:         req.Model,
		Location:      req.Location,
		StoreCode:     storeCode,
		IPAddressLAN:  req.IPAddressLAN,
		IPAddressWifi: req.IPAddressWifi,
		IsActive:      true,
	}
	var apiKey string
	if req.GenerateAPIKey {
		apiKey = device.NewAPIKey()
		dev.APIKey = &apiKey
	}

	created, err := d.Store.RegisterDevice(reqCtx, dev, req.PlaylistIDs)
	if err != nil {
		return nil, api.FromError(err)
	}
	if len(req.PlaylistIDs) > 0 {
		d.Notifier.DevicesChanged(reqCtx, created.DeviceID)
	}

	log.Info().Str("device_id", created.DeviceID).Int("playlists", len(req.PlaylistIDs)).
		Int("by", principal.UserID).Msg("[devices] device registered")
	return api.Created(packets.RegisterDeviceResponse{Device: d.toResponse(created), APIKey: apiKey}), nil
}

// GET /api/devices/:device_id
func (d *DeviceController) getDevice(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return d.toResponse(dev), nil
}

// PUT /api/devices/:device_id
func (d *DeviceController) updateDevice(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.UpdateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BindError(err)
	}
	reqCtx := ctx.Request.Context()

	upd := db.DeviceUpdate{
		Name:          req.Name,
		Model:         req.Model,
		Location:      req.Location,
		IPAddressLAN:  req.IPAddressLAN,
		IPAddressWifi: req.IPAddressWifi,
		IsActive:      req.IsActive,
	}
	if req.StoreCode != nil {
		code, err := d.Playlists.ValidateStoreCode(reqCtx, *req.StoreCode)
		if err != nil {
			return nil, api.FromError(err)
		}
		cleared := ""
		if code == nil {
			code = &cleared
		}
		upd.StoreCode = code
	}

	if err := d.Store.UpdateDevice(reqCtx, dev.ID, upd); err != nil {
		return nil, api.FromError(err)
	}
	// store or activation changes alter which playlists are deliverable
	if upd.StoreCode != nil || upd.IsActive != nil {
		d.Notifier.DevicesChanged(reqCtx, dev.DeviceID)
	}

	updated, err := d.Store.GetDeviceByID(reqCtx, dev.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return d.toResponse(updated), nil
}

// DELETE /api/devices/:device_id
func (d *DeviceController) deleteDevice(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := d.Store.DeleteDevice(ctx.Request.Context(), dev.ID); err != nil {
		return nil, api.FromError(err)
	}
	d.Notifier.DevicesChanged(ctx.Request.Context(), dev.DeviceID)

	log.Info().Str("device_id", dev.DeviceID).Int("by", principal.UserID).Msg("[devices] device deleted")
	return nil, nil
}

// POST /api/devices/:device_id/api-key issues a new key; the old one stops working.
func (d *DeviceController) rotateAPIKey(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	key := device.NewAPIKey()
	if err := d.Store.SetAPIKey(ctx.Request.Context(), dev.DeviceID, key); err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Str("device_id", dev.DeviceID).Int("by", principal.UserID).Msg("[devices] api key rotated")
	return packets.APIKeyResponse{DeviceID: dev.DeviceID, APIKey: key}, nil
}

// GET /api/devices/:device_id/playlists
func (d *DeviceController) listDevicePlaylists(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	assigned, err := d.Store.ListAssignedPlaylists(ctx.Request.Context(), dev.DeviceID)
	if err != nil {
		return nil, api.FromError(err)
	}
	now := d.now()
	out := make([]packets.PlaylistResponse, 0, len(assigned))
	for i := range assigned {
		out = append(out, packets.PlaylistResponse{
			Playlist: assigned[i],
			Active:   playlist.IsPlaylistActive(&assigned[i], now) && playlist.IsCompatible(assigned[i].StoreCode, dev.StoreCode),
		})
	}
	return out, nil
}

// POST /api/devices/:device_id/playlists/:playlist_id
func (d *DeviceController) assignPlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	playlistID, apiErr := intParam(ctx, "playlist_id")
	if apiErr != nil {
		return nil, apiErr
	}
	reqCtx := ctx.Request.Context()

	pl, err := d.Store.GetPlaylist(reqCtx, playlistID)
	if err != nil {
		return nil, api.FromError(err)
	}
	if !playlist.IsCompatible(pl.StoreCode, dev.StoreCode) {
		return nil, api.BadRequest("playlist belongs to another store")
	}
	if err := d.Store.AssignPlaylist(reqCtx, dev.DeviceID, playlistID); err != nil {
		return nil, api.FromError(err)
	}
	d.Notifier.DevicesChanged(reqCtx, dev.DeviceID)
	return api.Created(gin.H{"device_id": dev.DeviceID, "playlist_id": playlistID}), nil
}

// DELETE /api/devices/:device_id/playlists/:playlist_id
func (d *DeviceController) unassignPlaylist(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	playlistID, apiErr := intParam(ctx, "playlist_id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := d.Store.UnassignPlaylist(ctx.Request.Context(), dev.DeviceID, playlistID); err != nil {
		return nil, api.FromError(err)
	}
	d.Notifier.DevicesChanged(ctx.Request.Context(), dev.DeviceID)
	return nil, nil
}

// GET /api/devices/:device_id/ping
func (d *DeviceController) pingDevice(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return d.Pinger.CheckDevice(ctx.Request.Context(), dev), nil
}

// GET /api/ping probes every active device.
func (d *DeviceController) pingAll(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	summary, err := d.Pinger.CheckAll(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return summary, nil
}

// GET /api/devices/:device_id/status asks the agent for live service state and
// returns it next to the last self-reported metrics.
func (d *DeviceController) deviceStatus(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}

	out := packets.DeviceStatusResponse{
		DeviceID: dev.DeviceID,
		Services: map[string]*device.ServiceStatus{},
		Reported: packets.DeviceReport{
			CPUTemp:        dev.CPUTemp,
			MemoryUsage:    dev.MemoryUsage,
			DiskUsage:      dev.DiskUsage,
			VideoloopState: dev.VideoloopState,
			KioskState:     dev.KioskState,
			LastSeen:       dev.LastSeen,
		},
	}
	for svc := range device.Services {
		st, err := d.Agent.ServiceStatus(ctx.Request.Context(), dev, svc)
		if err != nil {
			if out.Errors == nil {
				out.Errors = map[string]string{}
			}
			out.Errors[svc] = errs.Message(err)
			continue
		}
		out.Reachable = true
		out.Services[svc] = st
	}
	return out, nil
}

// GET /api/devices/:device_id/logs?lines=
func (d *DeviceController) deviceLogs(ctx *gin.Context, _ *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	lines := 100
	if raw := ctx.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 5000 {
			return nil, api.BadRequest("lines must be between 1 and 5000")
		}
		lines = n
	}
	logs, err := d.Agent.Logs(ctx.Request.Context(), dev, lines)
	if err != nil {
		return nil, api.FromError(err)
	}
	return gin.H{"device_id": dev.DeviceID, "lines": lines, "logs": logs}, nil
}

// POST /api/devices/:device_id/service/:service/:action
func (d *DeviceController) serviceAction(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	service, action := ctx.Param("service"), ctx.Param("action")
	if !device.Services[service] {
		return nil, api.BadRequest("unknown service " + service)
	}
	if !device.ServiceActions[action] {
		return nil, api.BadRequest("unknown action " + action)
	}
	var req packets.ServiceActionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return nil, api.BindError(err)
		}
	}

	cmd := notify.Command{Type: notify.CommandService, Service: service, Action: action, Params: req.Params, SentAt: d.now().UTC()}
	return d.send(dev, cmd, principal)
}

// POST /api/devices/:device_id/reboot
func (d *DeviceController) rebootDevice(ctx *gin.Context, principal *auth.Principal) (any, *api.APIError) {
	dev, apiErr := d.loadDevice(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return d.send(dev, notify.Command{Type: notify.CommandReboot, SentAt: d.now().UTC()}, principal)
}

func (d *DeviceController) send(dev *model.Device, cmd notify.Command, principal *auth.Principal) (any, *api.APIError) {
	if !dev.IsActive {
		return nil, &api.APIError{Code: http.StatusConflict, Message: "device is inactive"}
	}
	if err := d.publisher().Publish(dev.DeviceID, cmd); err != nil {
		log.Error().Err(err).Str("device_id", dev.DeviceID).Str("command", cmd.Type).Msg("[devices] command not delivered")
		var typed *errs.Error
		if errors.As(err, &typed) {
			return nil, api.FromError(err)
		}
		return nil, &api.APIError{Code: http.StatusBadGateway, Message: "command could not be delivered"}
	}
	log.Info().Str("device_id", dev.DeviceID).Str("command", cmd.Type).Str("service", cmd.Service).
		Str("action", cmd.Action).Int("by", principal.UserID).Msg("[devices] command sent")
	return packets.CommandResponse{DeviceID: dev.DeviceID, Command: cmd.Type, Sent: true}, nil
}
