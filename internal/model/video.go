package model

import "time"

type Video struct {
	ID             int        `db:"id"              json:"id"`
	Title          string     `db:"title"           json:"title"`
	Description    *string    `db:"description"     json:"description,omitempty"`
	FilePath       string     `db:"file_path"       json:"file_path"`
	FileSize       int64      `db:"file_size"       json:"file_size"`
	Duration       *int       `db:"duration"        json:"duration,omitempty"`
	UploadDate     time.Time  `db:"upload_date"     json:"upload_date"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	Tags           *string    `db:"tags"            json:"tags,omitempty"`
	IsActive       bool       `db:"is_active"       json:"is_active"`
	Thumbnail      *string    `db:"thumbnail"       json:"thumbnail,omitempty"`
}

// IsExpired reports whether the video's expiration date has passed at now.
func (v *Video) IsExpired(now time.Time) bool {
	return v.ExpirationDate != nil && !v.ExpirationDate.After(now)
}
