package playlist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

// memStore keeps playlists in memory; WithPlaylistLock applies changes only
// when fn succeeds, like a committed transaction.
type memStore struct {
	mu        sync.Mutex
	playlists map[int]*model.Playlist
	videos    map[int]*model.Video
	entries   map[int][]model.PlaylistVideo
	assigned  map[string][]int
	codes     []string
}

func newMemStore() *memStore {
	return &memStore{
		playlists: map[int]*model.Playlist{},
		videos:    map[int]*model.Video{},
		entries:   map[int][]model.PlaylistVideo{},
		assigned:  map[string][]int{},
	}
}

func (m *memStore) ListAssignedPlaylists(_ context.Context, deviceID string) ([]model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Playlist
	for _, id := range m.assigned[deviceID] {
		out = append(out, *m.playlists[id])
	}
	return out, nil
}

func (m *memStore) ListPlaylistVideos(_ context.Context, playlistID int) ([]model.PlaylistVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.PlaylistVideo(nil), m.entries[playlistID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	for i := range out {
		out[i].Video = m.videos[out[i].VideoID]
	}
	return out, nil
}

func (m *memStore) ListStoreCodes(context.Context) ([]string, error) {
	return m.codes, nil
}

func (m *memStore) WithPlaylistLock(_ context.Context, playlistID int, fn func(tx db.PlaylistTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[playlistID]; !ok {
		return errs.NotFound("lock playlist: not found")
	}
	tx := &memTx{store: m, rows: append([]model.PlaylistVideo(nil), m.entries[playlistID]...), playlistID: playlistID}
	if err := fn(tx); err != nil {
		return err
	}
	seen := map[int]bool{}
	for _, r := range tx.rows {
		if seen[r.Position] {
			return errs.Duplicate("duplicate position %d", r.Position)
		}
		seen[r.Position] = true
	}
	m.entries[playlistID] = tx.rows
	return nil
}

func (m *memStore) positions(playlistID int) map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]int{}
	for _, e := range m.entries[playlistID] {
		out[e.VideoID] = e.Position
	}
	return out
}

type memTx struct {
	store      *memStore
	playlistID int
	rows       []model.PlaylistVideo
}

func (t *memTx) Entries(context.Context) ([]model.PlaylistVideo, error) {
	out := append([]model.PlaylistVideo(nil), t.rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) VideoExists(_ context.Context, videoID int) (bool, error) {
	_, ok := t.store.videos[videoID]
	return ok, nil
}

func (t *memTx) Insert(_ context.Context, videoID, position int) error {
	t.rows = append(t.rows, model.PlaylistVideo{PlaylistID: t.playlistID, VideoID: videoID, Position: position})
	return nil
}

func (t *memTx) Delete(_ context.Context, videoID int) error {
	for i, r := range t.rows {
		if r.VideoID == videoID {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return errs.NotFound("remove video from playlist: not found")
}

func (t *memTx) SetPosition(_ context.Context, videoID, position int) error {
	for i := range t.rows {
		if t.rows[i].VideoID == videoID {
			t.rows[i].Position = position
			return nil
		}
	}
	return errs.NotFound("set position: not found")
}

func seeded() *memStore {
	m := newMemStore()
	m.playlists[1] = &model.Playlist{ID: 1, Title: "Promo", IsActive: true}
	for id := 1; id <= 5; id++ {
		m.videos[id] = &model.Video{ID: id, IsActive: true}
	}
	return m
}

func assertDense(t *testing.T, positions map[int]int) {
	t.Helper()
	var got []int
	for _, p := range positions {
		got = append(got, p)
	}
	sort.Ints(got)
	for i, p := range got {
		assert.Equal(t, i+1, p, "positions must be 1..N without gaps")
	}
}

func TestAddVideoAppendsAtEnd(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	pos, err := svc.AddVideoToPlaylist(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = svc.AddVideoToPlaylist(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestAddVideoRejectsDuplicateAndUnknown(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.AddVideoToPlaylist(ctx, 1, 1)
	require.NoError(t, err)

	_, err = svc.AddVideoToPlaylist(ctx, 1, 1)
	assert.True(t, errors.Is(err, errs.ErrDuplicate))

	_, err = svc.AddVideoToPlaylist(ctx, 1, 99)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = svc.AddVideoToPlaylist(ctx, 42, 1)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestRemoveVideoCompactsPositions(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.AddVideoToPlaylist(ctx, 1, 1)
	require.NoError(t, err)
	_, err = svc.AddVideoToPlaylist(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveVideoFromPlaylist(ctx, 1, 1))
	assert.Equal(t, map[int]int{2: 1}, store.positions(1))

	err = svc.RemoveVideoFromPlaylist(ctx, 1, 1)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestAddThenRemoveRestoresState(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	for _, id := range []int{1, 2, 3} {
		_, err := svc.AddVideoToPlaylist(ctx, 1, id)
		require.NoError(t, err)
	}
	before := store.positions(1)

	_, err := svc.AddVideoToPlaylist(ctx, 1, 4)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveVideoFromPlaylist(ctx, 1, 4))

	assert.Equal(t, before, store.positions(1))
}

func TestPositionsStayDenseAcrossMixedOperations(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	ops := []struct {
		add   bool
		video int
	}{
		{true, 1}, {true, 2}, {true, 3}, {false, 2}, {true, 4}, {true, 5},
		{false, 1}, {false, 5}, {true, 2}, {false, 4}, {true, 1},
	}
	for _, op := range ops {
		if op.add {
			_, err := svc.AddVideoToPlaylist(ctx, 1, op.video)
			require.NoError(t, err)
		} else {
			require.NoError(t, svc.RemoveVideoFromPlaylist(ctx, 1, op.video))
		}
		assertDense(t, store.positions(1))
	}
	assert.Len(t, store.positions(1), 3)
}

func TestReorderPlaylist(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	for _, id := range []int{1, 2, 3} {
		_, err := svc.AddVideoToPlaylist(ctx, 1, id)
		require.NoError(t, err)
	}

	require.NoError(t, svc.ReorderPlaylist(ctx, 1, []int{3, 1, 2}))
	assert.Equal(t, map[int]int{3: 1, 1: 2, 2: 3}, store.positions(1))
}

func TestReorderRejectsWithoutPartialApply(t *testing.T) {
	store := seeded()
	svc := NewService(store)
	ctx := context.Background()

	for _, id := range []int{1, 2, 3} {
		_, err := svc.AddVideoToPlaylist(ctx, 1, id)
		require.NoError(t, err)
	}
	before := store.positions(1)

	cases := [][]int{
		{3, 2, 5},    // 5 is not a member
		{3, 3, 1},    // duplicate
		{2, 1},       // missing member
		{1, 2, 3, 4}, // extra video
	}
	for _, order := range cases {
		err := svc.ReorderPlaylist(ctx, 1, order)
		assert.True(t, errors.Is(err, errs.ErrValidation), "order %v", order)
		assert.Equal(t, before, store.positions(1), "order %v must not be applied", order)
	}
}

func TestResolvePlaylistsForDevice(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.videos[1] = &model.Video{ID: 1, IsActive: true}
	store.videos[2] = &model.Video{ID: 2, IsActive: true, ExpirationDate: timePtr(now.Add(-time.Hour))}

	store.playlists[1] = &model.Playlist{ID: 1, Title: "general", IsActive: true}
	store.playlists[2] = &model.Playlist{ID: 2, Title: "sti", IsActive: true, StoreCode: strPtr("STI")}
	store.playlists[3] = &model.Playlist{ID: 3, Title: "sdq", IsActive: true, StoreCode: strPtr("SDQ")}
	store.playlists[4] = &model.Playlist{ID: 4, Title: "expired", IsActive: true, ExpirationDate: timePtr(now.Add(-time.Minute))}
	store.playlists[5] = &model.Playlist{ID: 5, Title: "unassigned sti", IsActive: true, StoreCode: strPtr("STI")}
	store.playlists[6] = &model.Playlist{ID: 6, Title: "disabled", IsActive: false}
	store.entries[1] = []model.PlaylistVideo{
		{PlaylistID: 1, VideoID: 2, Position: 1},
		{PlaylistID: 1, VideoID: 1, Position: 2},
	}
	store.assigned["dev-1"] = []int{1, 2, 3, 4, 6}

	svc := NewService(store).WithClock(func() time.Time { return now })
	device := &model.Device{DeviceID: "dev-1", StoreCode: strPtr("STI")}

	got, err := svc.ResolvePlaylistsForDevice(context.Background(), device)
	require.NoError(t, err)

	var ids []int
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{1, 2}, ids)

	require.Len(t, got[0].Videos, 1)
	assert.Equal(t, 1, got[0].Videos[0].VideoID)
}

func TestServiceValidateStoreCode(t *testing.T) {
	store := newMemStore()
	store.codes = []string{"SDQ", "STI"}
	svc := NewService(store)

	code, err := svc.ValidateStoreCode(context.Background(), " sdq")
	require.NoError(t, err)
	assert.Equal(t, "SDQ", *code)

	code, err = svc.ValidateStoreCode(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, code)

	_, err = svc.ValidateStoreCode(context.Background(), "XYZ")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
