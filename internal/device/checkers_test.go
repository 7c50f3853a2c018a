package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db/dbmock"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/notify"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
)

type fakeProber struct {
	up map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, host string) error {
	if f.up[host] {
		return nil
	}
	return errors.New("unreachable")
}

func TestPingCheckerCheckAll(t *testing.T) {
	store := new(dbmock.Store)
	devices := []model.Device{
		{DeviceID: "lan", IsActive: true, IPAddressLAN: strPtr("10.0.0.1")},
		{DeviceID: "wifi", IsActive: true, IPAddressLAN: strPtr("10.0.0.2"), IPAddressWifi: strPtr("10.0.1.2")},
		{DeviceID: "down", IsActive: true, IPAddressLAN: strPtr("10.0.0.3")},
		{DeviceID: "noip", IsActive: true},
	}
	store.On("ListDevices", db.DeviceFilter{ActiveOnly: true}).Return(devices, nil)
	store.On("TouchDevice", mock.Anything, mock.Anything).Return(nil)

	prober := &fakeProber{up: map[string]bool{"10.0.0.1": true, "10.0.1.2": true}}
	checker := NewPingChecker(store, prober, time.Minute, 2)

	summary, err := checker.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Online)
	assert.Equal(t, 2, summary.Offline)
	assert.True(t, summary.Results["lan"].LANActive)
	assert.True(t, summary.Results["wifi"].WifiActive)
	assert.False(t, summary.Results["down"].Online)

	store.AssertNumberOfCalls(t, "TouchDevice", 2)
}

type fakeResolver struct {
	mu        sync.Mutex
	playlists map[string][]model.Playlist
}

func (f *fakeResolver) ResolvePlaylistsForDevice(_ context.Context, d *model.Device) ([]model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playlists[d.DeviceID], nil
}

type recordingPublisher struct {
	sent []string
}

func (r *recordingPublisher) Publish(deviceID string, cmd notify.Command) error {
	r.sent = append(r.sent, deviceID+":"+cmd.Type)
	return nil
}

func TestPlaylistCheckerNotifiesOnlyOnChange(t *testing.T) {
	store := new(dbmock.Store)
	store.On("ListDevices", db.DeviceFilter{ActiveOnly: true}).Return([]model.Device{
		{DeviceID: "pi-001", IsActive: true},
		{DeviceID: "pi-002", IsActive: true},
	}, nil)

	resolver := &fakeResolver{playlists: map[string][]model.Playlist{
		"pi-001": {{ID: 1}},
		"pi-002": {{ID: 2}},
	}}
	pub := &recordingPublisher{}
	checker := NewPlaylistChecker(store, resolver, redis.NewMemoryETagCache(), pub, time.Minute)
	ctx := context.Background()

	n, err := checker.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "first round only seeds")

	n, _ = checker.CheckOnce(ctx)
	assert.Equal(t, 0, n)

	// playlist 3 became active for pi-001
	resolver.mu.Lock()
	resolver.playlists["pi-001"] = []model.Playlist{{ID: 1}, {ID: 3}}
	resolver.mu.Unlock()

	n, _ = checker.CheckOnce(ctx)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"pi-001:playlist_update"}, pub.sent)
}

func TestFingerprint(t *testing.T) {
	a := []model.Playlist{{ID: 1, Videos: []model.PlaylistVideo{{VideoID: 4, Position: 1}}}}
	b := []model.Playlist{{ID: 1, Videos: []model.PlaylistVideo{{VideoID: 4, Position: 2}}}}
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(nil), Fingerprint(a))
	assert.Len(t, Fingerprint(nil), 34)
}
