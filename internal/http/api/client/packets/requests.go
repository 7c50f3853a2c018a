package packets

type LoginRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	APIKey   string `json:"api_key"   binding:"required"`
}

// StatusReport is sent periodically by the device.
type StatusReport struct {
	CPUTemp         *float64 `json:"cpu_temp"         binding:"omitempty,min=-50,max=150"`
	MemoryUsage     *float64 `json:"memory_usage"     binding:"omitempty,min=0,max=100"`
	DiskUsage       *float64 `json:"disk_usage"       binding:"omitempty,min=0,max=100"`
	VideoloopStatus *string  `json:"videoloop_status" binding:"omitempty,max=50"`
	KioskStatus     *string  `json:"kiosk_status"     binding:"omitempty,max=50"`
	IPAddressLAN    *string  `json:"ip_address_lan"   binding:"omitempty,ip"`
	IPAddressWifi   *string  `json:"ip_address_wifi"  binding:"omitempty,ip"`
}
