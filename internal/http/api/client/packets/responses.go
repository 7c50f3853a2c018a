package packets

import "time"

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	DeviceID    string `json:"device_id"`
}

type PlaylistsResponse struct {
	DeviceID    string             `json:"device_id"`
	StoreCode   *string            `json:"store_code,omitempty"`
	ETag        string             `json:"etag"`
	GeneratedAt time.Time          `json:"generated_at"`
	Playlists   []PlaylistResponse `json:"playlists"`
}

type PlaylistResponse struct {
	ID             int             `json:"id"`
	Title          string          `json:"title"`
	Description    *string         `json:"description,omitempty"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	StoreCode      *string         `json:"store_code,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Videos         []VideoResponse `json:"videos"`
}

type VideoResponse struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Position    int        `json:"position"`
	Duration    *int       `json:"duration,omitempty"`
	FileSize    int64      `json:"file_size"`
	Filename    string     `json:"filename"`
	Expires     *time.Time `json:"expiration_date,omitempty"`
	DownloadURL string     `json:"download_url"`
}

type PingResponse struct {
	Status     string    `json:"status"`
	DeviceID   string    `json:"device_id"`
	ServerTime time.Time `json:"server_time"`
}
