package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
)

// Fingerprint identifies the exact set of playlists and videos a device would
// receive; it is used as the ETag of /api/client/playlists.
func Fingerprint(playlists []model.Playlist) string {
	h := sha256.New()
	for _, p := range playlists {
		fmt.Fprintf(h, "p%d:%d;", p.ID, p.UpdatedAt.UnixNano())
		for _, v := range p.Videos {
			fmt.Fprintf(h, "v%d@%d;", v.VideoID, v.Position)
			if v.Video != nil {
				fmt.Fprintf(h, "%s;", v.Video.FilePath)
			}
		}
	}
	return `"` + hex.EncodeToString(h.Sum(nil))[:32] + `"`
}

type Resolver interface {
	ResolvePlaylistsForDevice(ctx context.Context, device *model.Device) ([]model.Playlist, error)
}

type DeviceLister interface {
	ListDevices(ctx context.Context, f db.DeviceFilter) ([]model.Device, error)
}

// PlaylistChecker notices when a device's deliverable playlists change because
// a start or expiration date passed, and tells the device to refresh.
type PlaylistChecker struct {
	devices   DeviceLister
	resolver  Resolver
	cache     redis.ETagCache
	publisher notify.Publisher
	interval  time.Duration
}

func NewPlaylistChecker(devices DeviceLister, resolver Resolver, cache redis.ETagCache, publisher notify.Publisher, interval time.Duration) *PlaylistChecker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PlaylistChecker{devices: devices, resolver: resolver, cache: cache, publisher: publisher, interval: interval}
}

// CheckOnce returns how many devices were told to refresh.
func (c *PlaylistChecker) CheckOnce(ctx context.Context) (int, error) {
	devices, err := c.devices.ListDevices(ctx, db.DeviceFilter{ActiveOnly: true})
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range devices {
		dev := &devices[i]
		playlists, err := c.resolver.ResolvePlaylistsForDevice(ctx, dev)
		if err != nil {
			log.Error().Err(err).Str("device_id", dev.DeviceID).Msg("[device] could not resolve playlists")
			continue
		}
		etag := Fingerprint(playlists)

		previous, known, err := c.cache.Get(ctx, dev.DeviceID)
		if err != nil {
			log.Warn().Err(err).Str("device_id", dev.DeviceID).Msg("[device] could not read playlist ETag")
			continue
		}
		if known && previous == etag {
			continue
		}
		if err := c.cache.Set(ctx, dev.DeviceID, etag); err != nil {
			continue
		}
		// first sighting only seeds the cache
		if !known {
			continue
		}

		cmd := notify.Command{Type: notify.CommandPlaylistUpdate, Params: map[string]string{"etag": etag}}
		if err := c.publisher.Publish(dev.DeviceID, cmd); err != nil {
			log.Warn().Err(err).Str("device_id", dev.DeviceID).Msg("[device] could not notify playlist change")
			continue
		}
		notified++
	}
	return notified, nil
}

func (c *PlaylistChecker) Run(ctx context.Context) {
	log.Info().Dur("interval", c.interval).Msg("[device] playlist checker started")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		n, err := c.CheckOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("[device] playlist check failed")
		} else if n > 0 {
			log.Info().Int("notified", n).Msg("[device] devices notified of playlist changes")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("[device] playlist checker stopped")
			return
		case <-ticker.C:
		}
	}
}
