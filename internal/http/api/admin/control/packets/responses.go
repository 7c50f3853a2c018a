package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type DeviceResponse struct {
	model.Device
	HasAPIKey bool `json:"has_api_key"`
	Online    bool `json:"online"`
}

// RegisterDeviceResponse carries the API key only when one was generated.
type RegisterDeviceResponse struct {
	Device DeviceResponse `json:"device"`
	APIKey string         `json:"api_key,omitempty"`
}

type APIKeyResponse struct {
	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key"`
}

type DeviceStatusResponse struct {
	DeviceID  string                           `json:"device_id"`
	Reachable bool                             `json:"reachable"`
	Services  map[string]*device.ServiceStatus `json:"services"`
	Errors    map[string]string                `json:"errors,omitempty"`
	Reported  DeviceReport                     `json:"reported"`
}

// DeviceReport is what the device last sent on /api/client/status.
type DeviceReport struct {
	CPUTemp        *float64   `json:"cpu_temp,omitempty"`
	MemoryUsage    *float64   `json:"memory_usage,omitempty"`
	DiskUsage      *float64   `json:"disk_usage,omitempty"`
	VideoloopState *string    `json:"videoloop_status,omitempty"`
	KioskState     *string    `json:"kiosk_status,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

type PlaylistResponse struct {
	model.Playlist
	Active      bool `json:"active_now"`
	VideoCount  int  `json:"video_count"`
	DeviceCount int  `json:"device_count"`
}

type PlaylistVideoResponse struct {
	VideoID  int          `json:"video_id"`
	Position int          `json:"position"`
	Video    *model.Video `json:"video,omitempty"`
}

type StoreListResponse struct {
	Stores []model.Store `json:"stores"`
	Total  int           `json:"total"`
}

type CommandResponse struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
	Sent     bool   `json:"sent"`
}
