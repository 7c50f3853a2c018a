package playlist

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

// Store is the persistence the service needs; db.Store satisfies it.
type Store interface {
	ListAssignedPlaylists(ctx context.Context, deviceID string) ([]model.Playlist, error)
	ListPlaylistVideos(ctx context.Context, playlistID int) ([]model.PlaylistVideo, error)
	ListStoreCodes(ctx context.Context) ([]string, error)
	WithPlaylistLock(ctx context.Context, playlistID int, fn func(tx db.PlaylistTx) error) error
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the time source; used by tests and the checker loop.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ResolvePlaylistsForDevice returns the playlists assigned to the device that are
// active now and compatible with its store, each carrying only its active videos.
func (s *Service) ResolvePlaylistsForDevice(ctx context.Context, device *model.Device) ([]model.Playlist, error) {
	now := s.now()
	assigned, err := s.store.ListAssignedPlaylists(ctx, device.DeviceID)
	if err != nil {
		return nil, err
	}

	out := make([]model.Playlist, 0, len(assigned))
	for i := range assigned {
		p := assigned[i]
		if !IsPlaylistActive(&p, now) || !IsCompatible(p.StoreCode, device.StoreCode) {
			continue
		}
		entries, err := s.store.ListPlaylistVideos(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Videos = ActiveVideos(entries, now)
		out = append(out, p)
	}

	log.Debug().Str("device_id", device.DeviceID).Int("assigned", len(assigned)).
		Int("deliverable", len(out)).Msg("[playlist] resolved playlists for device")
	return out, nil
}

// AddVideoToPlaylist appends the video and returns its position.
func (s *Service) AddVideoToPlaylist(ctx context.Context, playlistID, videoID int) (int, error) {
	position := 0
	err := s.store.WithPlaylistLock(ctx, playlistID, func(tx db.PlaylistTx) error {
		exists, err := tx.VideoExists(ctx, videoID)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NotFound("video %d not found", videoID)
		}

		entries, err := tx.Entries(ctx)
		if err != nil {
			return err
		}
		highest := 0
		for _, e := range entries {
			if e.VideoID == videoID {
				return errs.Duplicate("video %d is already in playlist %d", videoID, playlistID)
			}
			if e.Position > highest {
				highest = e.Position
			}
		}

		position = highest + 1
		return tx.Insert(ctx, videoID, position)
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int("playlist_id", playlistID).Int("video_id", videoID).Int("position", position).
		Msg("[playlist] video added")
	return position, nil
}

// RemoveVideoFromPlaylist deletes the entry and shifts every later entry down by one.
func (s *Service) RemoveVideoFromPlaylist(ctx context.Context, playlistID, videoID int) error {
	err := s.store.WithPlaylistLock(ctx, playlistID, func(tx db.PlaylistTx) error {
		entries, err := tx.Entries(ctx)
		if err != nil {
			return err
		}
		removed := -1
		for _, e := range entries {
			if e.VideoID == videoID {
				removed = e.Position
				break
			}
		}
		if removed < 0 {
			return errs.NotFound("video %d is not in playlist %d", videoID, playlistID)
		}

		if err := tx.Delete(ctx, videoID); err != nil {
			return err
		}
		// entries are position-ordered, so this walks upward
		for _, e := range entries {
			if e.Position > removed {
				if err := tx.SetPosition(ctx, e.VideoID, e.Position-1); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("playlist_id", playlistID).Int("video_id", videoID).Msg("[playlist] video removed")
	return nil
}

// ReorderPlaylist assigns positions 1..N following videoIDs. The list must name
// every member exactly once; otherwise nothing changes.
func (s *Service) ReorderPlaylist(ctx context.Context, playlistID int, videoIDs []int) error {
	err := s.store.WithPlaylistLock(ctx, playlistID, func(tx db.PlaylistTx) error {
		entries, err := tx.Entries(ctx)
		if err != nil {
			return err
		}
		members := make(map[int]bool, len(entries))
		for _, e := range entries {
			members[e.VideoID] = true
		}

		seen := make(map[int]bool, len(videoIDs))
		for _, id := range videoIDs {
			if !members[id] {
				return errs.Validation("video %d is not in playlist %d", id, playlistID)
			}
			if seen[id] {
				return errs.Validation("video %d listed more than once", id)
			}
			seen[id] = true
		}
		if len(seen) != len(members) {
			return errs.Validation("order must list all %d videos of playlist %d, got %d",
				len(members), playlistID, len(seen))
		}

		for i, id := range videoIDs {
			if err := tx.SetPosition(ctx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("playlist_id", playlistID).Int("videos", len(videoIDs)).Msg("[playlist] reordered")
	return nil
}

// ValidateStoreCode checks code against the current store table.
func (s *Service) ValidateStoreCode(ctx context.Context, code string) (*string, error) {
	if NormalizeStoreCode(code) == "" {
		return nil, nil
	}
	codes, err := s.store.ListStoreCodes(ctx)
	if err != nil {
		return nil, err
	}
	return ValidateStoreCode(code, codes)
}
