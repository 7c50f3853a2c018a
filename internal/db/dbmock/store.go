// Package dbmock provides a testify mock of db.Store.
package dbmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type Store struct {
	mock.Mock
}

var _ db.Store = (*Store)(nil)

func (m *Store) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *Store) CreateUser(ctx context.Context, u *model.User) (int, error) {
	args := m.Called(u)
	return args.Int(0), args.Error(1)
}

func (m *Store) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *Store) UpdateUser(ctx context.Context, id int, upd db.UserUpdate) error {
	return m.Called(id, upd).Error(0)
}

func (m *Store) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	return m.Called(id, hash).Error(0)
}

func (m *Store) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	return m.Called(id, at).Error(0)
}

func (m *Store) InsertSession(ctx context.Context, s *model.Session) error {
	return m.Called(s).Error(0)
}

func (m *Store) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *Store) TouchSession(ctx context.Context, id int, at time.Time) error {
	return m.Called(id, at).Error(0)
}

func (m *Store) RevokeSessionByToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(token)
	return args.Bool(0), args.Error(1)
}

func (m *Store) RevokeSessionsByID(ctx context.Context, ids []int) (int, error) {
	args := m.Called(ids)
	return args.Int(0), args.Error(1)
}

func (m *Store) RevokeUserSessions(ctx context.Context, userID int) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

func (m *Store) ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error) {
	args := m.Called(userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *Store) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(now)
	return args.Int(0), args.Error(1)
}

func (m *Store) CreateStore(ctx context.Context, code, location string) (*model.Store, error) {
	args := m.Called(code, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Store), args.Error(1)
}

func (m *Store) GetStoreByID(ctx context.Context, id int) (*model.Store, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Store), args.Error(1)
}

func (m *Store) GetStoreByCode(ctx context.Context, code string) (*model.Store, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Store), args.Error(1)
}

func (m *Store) ListStores(ctx context.Context, search string) ([]model.Store, error) {
	args := m.Called(search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Store), args.Error(1)
}

func (m *Store) CountStores(ctx context.Context, search string) (int, error) {
	args := m.Called(search)
	return args.Int(0), args.Error(1)
}

func (m *Store) ListStoreCodes(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) UpdateStore(ctx context.Context, id int, code, location *string) error {
	return m.Called(id, code, location).Error(0)
}

func (m *Store) DeleteStore(ctx context.Context, id int) error {
	return m.Called(id).Error(0)
}

func (m *Store) RegisterDevice(ctx context.Context, d *model.Device, playlistIDs []int) (*model.Device, error) {
	args := m.Called(d, playlistIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *Store) GetDeviceByID(ctx context.Context, id int) (*model.Device, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *Store) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	args := m.Called(deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *Store) GetDeviceByAPIKey(ctx context.Context, apiKey string) (*model.Device, error) {
	args := m.Called(apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *Store) ListDevices(ctx context.Context, f db.DeviceFilter) ([]model.Device, error) {
	args := m.Called(f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *Store) UpdateDevice(ctx context.Context, id int, upd db.DeviceUpdate) error {
	return m.Called(id, upd).Error(0)
}

func (m *Store) DeleteDevice(ctx context.Context, id int) error {
	return m.Called(id).Error(0)
}

func (m *Store) ClaimAPIKey(ctx context.Context, deviceID, apiKey string) (bool, error) {
	args := m.Called(deviceID, apiKey)
	return args.Bool(0), args.Error(1)
}

func (m *Store) SetAPIKey(ctx context.Context, deviceID, apiKey string) error {
	return m.Called(deviceID, apiKey).Error(0)
}

func (m *Store) AssignMissingAPIKeys(ctx context.Context, generate func() string) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *Store) UpdateDeviceStatus(ctx context.Context, deviceID string, st model.DeviceStatus, seen time.Time) error {
	return m.Called(deviceID, st, seen).Error(0)
}

func (m *Store) TouchDevice(ctx context.Context, deviceID string, seen time.Time) error {
	return m.Called(deviceID, seen).Error(0)
}

func (m *Store) AssignPlaylist(ctx context.Context, deviceID string, playlistID int) error {
	return m.Called(deviceID, playlistID).Error(0)
}

// AssignPlaylistToDevices records the call; check is not run.
func (m *Store) AssignPlaylistToDevices(ctx context.Context, playlistID int, deviceIDs []string,
	check func(pl *model.Playlist, d *model.Device) error) error {
	return m.Called(playlistID, deviceIDs).Error(0)
}

func (m *Store) UnassignPlaylist(ctx context.Context, deviceID string, playlistID int) error {
	return m.Called(deviceID, playlistID).Error(0)
}

func (m *Store) ListAssignedPlaylists(ctx context.Context, deviceID string) ([]model.Playlist, error) {
	args := m.Called(deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Playlist), args.Error(1)
}

func (m *Store) ListDeviceIDsForPlaylist(ctx context.Context, playlistID int) ([]string, error) {
	args := m.Called(playlistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) IsPlaylistAssigned(ctx context.Context, deviceID string, playlistID int) (bool, error) {
	args := m.Called(deviceID, playlistID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) IsVideoAssigned(ctx context.Context, deviceID string, videoID int) (bool, error) {
	args := m.Called(deviceID, videoID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) CreateVideo(ctx context.Context, v *model.Video) (*model.Video, error) {
	args := m.Called(v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *Store) GetVideo(ctx context.Context, id int) (*model.Video, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *Store) ListVideos(ctx context.Context, f db.VideoFilter) ([]model.Video, error) {
	args := m.Called(f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Video), args.Error(1)
}

func (m *Store) UpdateVideo(ctx context.Context, id int, upd db.VideoUpdate) error {
	return m.Called(id, upd).Error(0)
}

func (m *Store) DeleteVideo(ctx context.Context, id int) (*model.Video, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *Store) ListPlaylistIDsForVideo(ctx context.Context, videoID int) ([]int, error) {
	args := m.Called(videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *Store) CreatePlaylist(ctx context.Context, p *model.Playlist) (*model.Playlist, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Playlist), args.Error(1)
}

func (m *Store) GetPlaylist(ctx context.Context, id int) (*model.Playlist, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Playlist), args.Error(1)
}

func (m *Store) ListPlaylists(ctx context.Context, f db.PlaylistFilter) ([]model.Playlist, error) {
	args := m.Called(f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Playlist), args.Error(1)
}

func (m *Store) UpdatePlaylist(ctx context.Context, id int, upd db.PlaylistUpdate) error {
	return m.Called(id, upd).Error(0)
}

func (m *Store) DeletePlaylist(ctx context.Context, id int) error {
	return m.Called(id).Error(0)
}

func (m *Store) ListPlaylistVideos(ctx context.Context, playlistID int) ([]model.PlaylistVideo, error) {
	args := m.Called(playlistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PlaylistVideo), args.Error(1)
}

// WithUserLock runs fn against the mock itself, so session expectations apply
// unchanged inside the lock.
func (m *Store) WithUserLock(ctx context.Context, userID int, fn func(tx db.SessionTx) error) error {
	return fn(m)
}

// WithPlaylistLock does not call fn; tests stub the outcome.
func (m *Store) WithPlaylistLock(ctx context.Context, playlistID int, fn func(tx db.PlaylistTx) error) error {
	return m.Called(playlistID).Error(0)
}
