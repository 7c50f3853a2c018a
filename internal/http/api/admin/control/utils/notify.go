package utils

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
)

type deviceFinder interface {
	ListDeviceIDsForPlaylist(ctx context.Context, playlistID int) ([]string, error)
}

// Notifier tells devices their playlist set changed: it drops their cached
// ETag and publishes a playlist_update command. Failures are logged only;
// the periodic playlist checker catches anything missed here.
type Notifier struct {
	store     deviceFinder
	cache     redis.ETagCache
	publisher notify.Publisher
}

func NewNotifier(store deviceFinder, cache redis.ETagCache, publisher notify.Publisher) *Notifier {
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &Notifier{store: store, cache: cache, publisher: publisher}
}

// PlaylistChanged notifies every device the playlist is assigned to.
func (n *Notifier) PlaylistChanged(ctx context.Context, playlistIDs ...int) {
	seen := map[string]bool{}
	var deviceIDs []string
	for _, id := range playlistIDs {
		ids, err := n.store.ListDeviceIDsForPlaylist(ctx, id)
		if err != nil {
			log.Error().Err(err).Int("playlist_id", id).Msg("[notify] could not list devices for playlist")
			continue
		}
		for _, d := range ids {
			if !seen[d] {
				seen[d] = true
				deviceIDs = append(deviceIDs, d)
			}
		}
	}
	if len(deviceIDs) == 0 {
		log.Debug().Ints("playlist_ids", playlistIDs).Msg("[notify] no devices assigned to playlist")
		return
	}
	n.DevicesChanged(ctx, deviceIDs...)
}

// DevicesChanged invalidates and notifies the given devices.
func (n *Notifier) DevicesChanged(ctx context.Context, deviceIDs ...string) {
	if len(deviceIDs) == 0 {
		return
	}
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, deviceIDs...); err != nil {
			log.Warn().Err(err).Strs("device_ids", deviceIDs).Msg("[notify] failed to invalidate playlist ETag cache")
		}
	}

	cmd := notify.Command{Type: notify.CommandPlaylistUpdate, SentAt: time.Now().UTC()}
	failed := 0
	for _, id := range deviceIDs {
		if err := n.publisher.Publish(id, cmd); err != nil {
			failed++
			log.Warn().Err(err).Str("device_id", id).Msg("[notify] playlist update not delivered")
		}
	}
	log.Info().Int("devices", len(deviceIDs)).Int("failed", failed).
		Msg("[notify] playlists changed, devices notified")
}
