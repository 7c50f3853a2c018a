package model

import "time"

// Device is a playback unit (Raspberry Pi) registered in the system.
type Device struct {
	ID             int        `db:"id"               json:"id"`
	DeviceID       string     `db:"device_id"        json:"device_id"`
	MACAddress     string     `db:"mac_address"      json:"mac_address"`
	Name           string     `db:"name"             json:"name"`
	Model          *string    `db:"model"            json:"model,omitempty"`
	IPAddressLAN   *string    `db:"ip_address_lan"   json:"ip_address_lan,omitempty"`
	IPAddressWifi  *string    `db:"ip_address_wifi"  json:"ip_address_wifi,omitempty"`
	Location       *string    `db:"location"         json:"location,omitempty"`
	StoreCode      *string    `db:"store_code"       json:"store_code,omitempty"`
	IsActive       bool       `db:"is_active"        json:"is_active"`
	APIKey         *string    `db:"api_key"          json:"-"`
	CPUTemp        *float64   `db:"cpu_temp"         json:"cpu_temp,omitempty"`
	MemoryUsage    *float64   `db:"memory_usage"     json:"memory_usage,omitempty"`
	DiskUsage      *float64   `db:"disk_usage"       json:"disk_usage,omitempty"`
	VideoloopState *string    `db:"videoloop_status" json:"videoloop_status,omitempty"`
	KioskState     *string    `db:"kiosk_status"     json:"kiosk_status,omitempty"`
	LastSeen       *time.Time `db:"last_seen"        json:"last_seen,omitempty"`
	RegisteredAt   time.Time  `db:"registered_at"    json:"registered_at"`
}

// Address returns the best reachable IP for the device agent, LAN first.
func (d *Device) Address() string {
	if d.IPAddressLAN != nil && *d.IPAddressLAN != "" {
		return *d.IPAddressLAN
	}
	if d.IPAddressWifi != nil && *d.IPAddressWifi != "" {
		return *d.IPAddressWifi
	}
	return ""
}

// DeviceStatus is the latest self-reported state of a device.
type DeviceStatus struct {
	CPUTemp        *float64
	MemoryUsage    *float64
	DiskUsage      *float64
	VideoloopState *string
	KioskState     *string
	IPAddressLAN   *string
	IPAddressWifi  *string
}

type DevicePlaylist struct {
	DeviceID   string    `db:"device_id"    json:"device_id"`
	PlaylistID int       `db:"playlist_id"  json:"playlist_id"`
	AssignedAt time.Time `db:"assigned_at"  json:"assigned_at"`
}
