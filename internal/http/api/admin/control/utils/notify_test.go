package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
)

type fakeFinder map[int][]string

func (f fakeFinder) ListDeviceIDsForPlaylist(_ context.Context, playlistID int) ([]string, error) {
	if playlistID < 0 {
		return nil, errors.New("db down")
	}
	return f[playlistID], nil
}

type capture struct {
	got []string
	cmd []notify.Command
	err error
}

func (c *capture) Publish(deviceID string, cmd notify.Command) error {
	c.got = append(c.got, deviceID)
	c.cmd = append(c.cmd, cmd)
	return c.err
}

func TestPlaylistChangedDeduplicatesDevices(t *testing.T) {
	ctx := context.Background()
	cache := redis.NewMemoryETagCache()
	require.NoError(t, cache.Set(ctx, "pi-001", `"old"`))
	require.NoError(t, cache.Set(ctx, "pi-009", `"keep"`))
	pub := &capture{}

	n := NewNotifier(fakeFinder{1: {"pi-001", "pi-002"}, 2: {"pi-002"}}, cache, pub)
	n.PlaylistChanged(ctx, 1, 2, -1)

	assert.Equal(t, []string{"pi-001", "pi-002"}, pub.got)
	for _, c := range pub.cmd {
		assert.Equal(t, notify.CommandPlaylistUpdate, c.Type)
	}
	_, ok, _ := cache.Get(ctx, "pi-001")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "pi-009")
	assert.True(t, ok)
}

func TestNotifierToleratesFailures(t *testing.T) {
	pub := &capture{err: errors.New("broker gone")}
	n := NewNotifier(fakeFinder{1: {"pi-001"}}, nil, pub)

	assert.NotPanics(t, func() { n.PlaylistChanged(context.Background(), 1) })
	assert.Equal(t, []string{"pi-001"}, pub.got)
}

func TestNotifierNoDevices(t *testing.T) {
	pub := &capture{}
	n := NewNotifier(fakeFinder{}, redis.NewMemoryETagCache(), pub)
	n.PlaylistChanged(context.Background(), 5)
	n.DevicesChanged(context.Background())
	assert.Empty(t, pub.got)
}

func TestNilPublisherIsNoop(t *testing.T) {
	n := NewNotifier(fakeFinder{1: {"pi-001"}}, nil, nil)
	assert.NotPanics(t, func() { n.DevicesChanged(context.Background(), "pi-001") })
}
