package packets

// Dates are accepted as RFC3339, "2006-01-02T15:04" or "2006-01-02";
// an empty string clears the field on update.

type RegisterDeviceRequest struct {
	DeviceID       string  `json:"device_id"       binding:"required,max=100"`
	MACAddress     string  `json:"mac_address"     binding:"required,mac"`
	Name           string  `json:"name"            binding:"required,max=100"`
	Model          *string `json:"model"`
	Location       *string `json:"location"`
	StoreCode      string  `json:"store_code"      binding:"omitempty,storecode"`
	IPAddressLAN   *string `json:"ip_address_lan"  binding:"omitempty,ip"`
	IPAddressWifi  *string `json:"ip_address_wifi" binding:"omitempty,ip"`
	PlaylistIDs    []int   `json:"playlist_ids"`
	GenerateAPIKey bool    `json:"generate_api_key"`
}

type UpdateDeviceRequest struct {
	Name          *string `json:"name"            binding:"omitempty,max=100"`
	Model         *string `json:"model"`
	Location      *string `json:"location"`
	StoreCode     *string `json:"store_code"      binding:"omitempty,storecode"`
	IPAddressLAN  *string `json:"ip_address_lan"  binding:"omitempty,ip"`
	IPAddressWifi *string `json:"ip_address_wifi" binding:"omitempty,ip"`
	IsActive      *bool   `json:"is_active"`
}

type CreatePlaylistRequest struct {
	Title          string  `json:"title"           binding:"required,max=200"`
	Description    *string `json:"description"`
	StartDate      string  `json:"start_date"`
	ExpirationDate string  `json:"expiration_date"`
	IsActive       *bool   `json:"is_active"`
	StoreCode      string  `json:"store_code"      binding:"omitempty,storecode"`
}

type UpdatePlaylistRequest struct {
	Title          *string `json:"title"           binding:"omitempty,max=200"`
	Description    *string `json:"description"`
	StartDate      *string `json:"start_date"`
	ExpirationDate *string `json:"expiration_date"`
	IsActive       *bool   `json:"is_active"`
	StoreCode      *string `json:"store_code"      binding:"omitempty,storecode"`
}

type AddPlaylistVideoRequest struct {
	VideoID int `json:"video_id" binding:"required"`
}

type ReorderPlaylistRequest struct {
	VideoIDs []int `json:"video_ids" binding:"required"`
}

type AssignDevicesRequest struct {
	DeviceIDs []string `json:"device_ids" binding:"required"`
}

// UploadVideoForm is bound from multipart/form-data; the file itself is "file".
type UploadVideoForm struct {
	Title          string `form:"title"           binding:"required,max=200"`
	Description    string `form:"description"`
	Tags           string `form:"tags"`
	Duration       *int   `form:"duration"        binding:"omitempty,min=0"`
	ExpirationDate string `form:"expiration_date"`
}

type UpdateVideoRequest struct {
	Title          *string `json:"title"           binding:"omitempty,max=200"`
	Description    *string `json:"description"`
	Tags           *string `json:"tags"`
	Duration       *int    `json:"duration"        binding:"omitempty,min=0"`
	IsActive       *bool   `json:"is_active"`
	ExpirationDate *string `json:"expiration_date"`
}

type CreateStoreRequest struct {
	Code     string `json:"code"     binding:"required,storecode"`
	Location string `json:"location" binding:"required,max=200"`
}

type UpdateStoreRequest struct {
	Code     *string `json:"code"     binding:"omitempty,storecode"`
	Location *string `json:"location" binding:"omitempty,max=200"`
}

type ServiceActionRequest struct {
	Params map[string]string `json:"params"`
}
