package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db/dbmock"
	"github.com/Nixie-Tech-LLC/vidcast/internal/device"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/redis"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, deviceID, apiKey string) (string, *model.Device, error) {
	if deviceID == "pi-001" && apiKey == "0123456789abcdef" {
		return "signed.device.token", &model.Device{DeviceID: "pi-001", IsActive: true}, nil
	}
	return "", nil, errs.ErrInvalidCredentials
}

func (fakeAuth) TokenTTL() time.Duration { return time.Hour }

type fakeResolver struct {
	playlists []model.Playlist
}

func (f *fakeResolver) ResolvePlaylistsForDevice(context.Context, *model.Device) ([]model.Playlist, error) {
	return f.playlists, nil
}

type clientFixture struct {
	store    *dbmock.Store
	resolver *fakeResolver
	cache    *redis.MemoryETagCache
	router   *gin.Engine
	dir      string
}

func init() {
	gin.SetMode(gin.TestMode)
	if err := api.RegisterValidators(); err != nil {
		panic(err)
	}
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()
	dir := t.TempDir()
	store := &dbmock.Store{}
	resolver := &fakeResolver{}
	cache := redis.NewMemoryETagCache()
	ctl := NewClientController(store, fakeAuth{}, resolver, storage.NewLocalStorage(dir), cache)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") == "Bearer good" {
			middleware.SetCurrentDevice(c, &model.Device{DeviceID: "pi-001", IsActive: true, StoreCode: nil})
		}
	})
	api.MountGroup(r, api.GroupConfig{Prefix: "/api/client"}, ClientModule(ctl))
	t.Cleanup(func() { store.AssertExpectations(t) })
	return &clientFixture{store: store, resolver: resolver, cache: cache, router: r, dir: dir}
}

func (f *clientFixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var authed = map[string]string{"Authorization": "Bearer good"}

func TestClientLogin(t *testing.T) {
	f := newClientFixture(t)

	w := f.do(http.MethodPost, "/api/client/login", gin.H{"device_id": "pi-001", "api_key": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/client/login", gin.H{"device_id": "pi-001"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/client/login", gin.H{"device_id": " pi-001 ", "api_key": "0123456789abcdef"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"access_token":"signed.device.token","token_type":"bearer","expires_in":3600,"device_id":"pi-001"}`, w.Body.String())
}

func TestClientRoutesNeedDevice(t *testing.T) {
	f := newClientFixture(t)
	w := f.do(http.MethodGet, "/api/client/playlists", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaylistsETag(t *testing.T) {
	f := newClientFixture(t)
	f.resolver.playlists = []model.Playlist{{
		ID:    3,
		Title: "Summer",
		Videos: []model.PlaylistVideo{
			{PlaylistID: 3, VideoID: 11, Position: 0, Video: &model.Video{ID: 11, Title: "Intro", FilePath: "/srv/uploads/intro.mp4", FileSize: 42}},
		},
	}}
	f.store.On("TouchDevice", "pi-001", mock.Anything).Return(nil)
	etag := device.Fingerprint(f.resolver.playlists)

	w := f.do(http.MethodGet, "/api/client/playlists", nil, authed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, etag, w.Header().Get("ETag"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	var body struct {
		ETag      string `json:"etag"`
		Playlists []struct {
			ID     int `json:"id"`
			Videos []struct {
				ID          int    `json:"id"`
				Filename    string `json:"filename"`
				DownloadURL string `json:"download_url"`
			} `json:"videos"`
		} `json:"playlists"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, etag, body.ETag)
	require.Len(t, body.Playlists, 1)
	require.Len(t, body.Playlists[0].Videos, 1)
	assert.Equal(t, "intro.mp4", body.Playlists[0].Videos[0].Filename)
	assert.Equal(t, "/api/client/videos/11/download", body.Playlists[0].Videos[0].DownloadURL)

	cached, ok, err := f.cache.Get(context.Background(), "pi-001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, etag, cached)

	w = f.do(http.MethodGet, "/api/client/playlists", nil, map[string]string{"Authorization": "Bearer good", "If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = f.do(http.MethodGet, "/api/client/playlists", nil, map[string]string{"Authorization": "Bearer good", "If-None-Match": `"stale"`})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestETagMatches(t *testing.T) {
	assert.False(t, etagMatches("", `"a"`))
	assert.True(t, etagMatches(`"a"`, `"a"`))
	assert.True(t, etagMatches(`W/"a"`, `"a"`))
	assert.True(t, etagMatches(`"b", "a"`, `"a"`))
	assert.True(t, etagMatches(`*`, `"a"`))
	assert.False(t, etagMatches(`"b"`, `"a"`))
}

func TestDownloadRequiresAssignment(t *testing.T) {
	f := newClientFixture(t)
	f.store.On("IsVideoAssigned", "pi-001", 11).Return(false, nil)

	w := f.do(http.MethodGet, "/api/client/videos/11/download", nil, authed)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/api/client/videos/abc/download", nil, authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadSkipsUndeliverableVideo(t *testing.T) {
	f := newClientFixture(t)
	// assigned through a playlist that is not active right now
	f.store.On("IsVideoAssigned", "pi-001", 11).Return(true, nil)

	w := f.do(http.MethodGet, "/api/client/videos/11/download", nil, authed)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadStreamsFile(t *testing.T) {
	f := newClientFixture(t)
	path := filepath.Join(f.dir, "intro.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))
	f.resolver.playlists = []model.Playlist{{
		ID:     3,
		Videos: []model.PlaylistVideo{{VideoID: 11, Video: &model.Video{ID: 11, FilePath: path}}},
	}}
	f.store.On("IsVideoAssigned", "pi-001", 11).Return(true, nil)

	w := f.do(http.MethodGet, "/api/client/videos/11/download", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video-bytes", w.Body.String())
}

func TestStatusReport(t *testing.T) {
	f := newClientFixture(t)
	f.store.On("UpdateDeviceStatus", "pi-001", mock.MatchedBy(func(st model.DeviceStatus) bool {
		return st.CPUTemp != nil && *st.CPUTemp == 51.5 && st.KioskState != nil && *st.KioskState == "active"
	}), mock.Anything).Return(nil)

	w := f.do(http.MethodPost, "/api/client/status", gin.H{"cpu_temp": 51.5, "kiosk_status": "active"}, authed)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/client/status", gin.H{"memory_usage": 140}, authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPing(t *testing.T) {
	f := newClientFixture(t)
	f.store.On("TouchDevice", "pi-001", mock.Anything).Return(nil)

	w := f.do(http.MethodPost, "/api/client/ping", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"device_id":"pi-001"`)
}
