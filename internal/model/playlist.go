package model

import "time"

type Playlist struct {
	ID             int             `db:"id"              json:"id"`
	Title          string          `db:"title"           json:"title"`
	Description    *string         `db:"description"     json:"description,omitempty"`
	StartDate      *time.Time      `db:"start_date"      json:"start_date,omitempty"`
	ExpirationDate *time.Time      `db:"expiration_date" json:"expiration_date,omitempty"`
	IsActive       bool            `db:"is_active"       json:"is_active"`
	StoreCode      *string         `db:"store_code"      json:"store_code,omitempty"`
	CreationDate   time.Time       `db:"creation_date"   json:"creation_date"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
	Videos         []PlaylistVideo `db:"-"               json:"videos,omitempty"`
}

// PlaylistVideo is one position-ordered entry of a playlist.
type PlaylistVideo struct {
	PlaylistID int    `db:"playlist_id" json:"playlist_id"`
	VideoID    int    `db:"video_id"    json:"video_id"`
	Position   int    `db:"position"    json:"position"`
	Video      *Video `db:"-"           json:"video,omitempty"`
}
