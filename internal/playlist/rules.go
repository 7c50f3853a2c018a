// Package playlist decides which playlists a device may play and keeps the
// video order inside a playlist dense.
package playlist

import (
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const (
	MinStoreCodeLen = 2
	MaxStoreCodeLen = 10
)

func NormalizeStoreCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsPlaylistActive reports whether p is enabled and now falls in
// [start_date, expiration_date). Missing bounds are open.
func IsPlaylistActive(p *model.Playlist, now time.Time) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.StartDate != nil && p.StartDate.After(now) {
		return false
	}
	if p.ExpirationDate != nil && !p.ExpirationDate.After(now) {
		return false
	}
	return true
}

// IsCompatible reports whether a playlist scoped to playlistCode may play on a
// device in deviceCode. A nil or blank playlist code is general.
func IsCompatible(playlistCode, deviceCode *string) bool {
	if playlistCode == nil || NormalizeStoreCode(*playlistCode) == "" {
		return true
	}
	if deviceCode == nil || NormalizeStoreCode(*deviceCode) == "" {
		return false
	}
	return NormalizeStoreCode(*playlistCode) == NormalizeStoreCode(*deviceCode)
}

// ValidateStoreCode normalizes code and checks it against the known codes.
// A blank code means "general" and yields nil.
func ValidateStoreCode(code string, validCodes []string) (*string, error) {
	normalized := NormalizeStoreCode(code)
	if normalized == "" {
		return nil, nil
	}
	if len(normalized) < MinStoreCodeLen || len(normalized) > MaxStoreCodeLen {
		return nil, errs.Validation("invalid store code %q: must be %d-%d characters (valid codes: %s)",
			normalized, MinStoreCodeLen, MaxStoreCodeLen, strings.Join(validCodes, ", "))
	}
	for _, valid := range validCodes {
		if NormalizeStoreCode(valid) == normalized {
			return &normalized, nil
		}
	}
	return nil, errs.Validation("invalid store code %q (valid codes: %s)",
		normalized, strings.Join(validCodes, ", "))
}

// ValidateWindow requires expiration to be strictly after start when both are set.
func ValidateWindow(start, expiration *time.Time) error {
	if start != nil && expiration != nil && !expiration.After(*start) {
		return errs.Validation("expiration_date (%s) must be after start_date (%s)",
			expiration.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// ActiveVideos keeps the entries whose video is enabled and not expired at now.
func ActiveVideos(entries []model.PlaylistVideo, now time.Time) []model.PlaylistVideo {
	out := make([]model.PlaylistVideo, 0, len(entries))
	for _, e := range entries {
		if e.Video == nil || !e.Video.IsActive || e.Video.IsExpired(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}
