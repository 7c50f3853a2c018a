// exposes a Store interface that is passed to API modules and services
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type Store interface {
	// health
	Ping(ctx context.Context) error

	// user functions
	CreateUser(ctx context.Context, u *model.User) (int, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int, upd UserUpdate) error
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
	TouchLastLogin(ctx context.Context, id int, at time.Time) error

	// session functions
	InsertSession(ctx context.Context, s *model.Session) error
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	TouchSession(ctx context.Context, id int, at time.Time) error
	RevokeSessionByToken(ctx context.Context, token string) (bool, error)
	RevokeSessionsByID(ctx context.Context, ids []int) (int, error)
	RevokeUserSessions(ctx context.Context, userID int) (int, error)
	ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error)
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error)
	WithUserLock(ctx context.Context, userID int, fn func(tx SessionTx) error) error

	// store (tienda) functions
	CreateStore(ctx context.Context, code, location string) (*model.Store, error)
	GetStoreByID(ctx context.Context, id int) (*model.Store, error)
	GetStoreByCode(ctx context.Context, code string) (*model.Store, error)
	ListStores(ctx context.Context, search string) ([]model.Store, error)
	CountStores(ctx context.Context, search string) (int, error)
	ListStoreCodes(ctx context.Context) ([]string, error)
	UpdateStore(ctx context.Context, id int, code, location *string) error
	DeleteStore(ctx context.Context, id int) error

	// device functions
	RegisterDevice(ctx context.Context, d *model.Device, playlistIDs []int) (*model.Device, error)
	GetDeviceByID(ctx context.Context, id int) (*model.Device, error)
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*model.Device, error)
	GetDeviceByAPIKey(ctx context.Context, apiKey string) (*model.Device, error)
	ListDevices(ctx context.Context, f DeviceFilter) ([]model.Device, error)
	UpdateDevice(ctx context.Context, id int, upd DeviceUpdate) error
	DeleteDevice(ctx context.Context, id int) error
	ClaimAPIKey(ctx context.Context, deviceID, apiKey string) (bool, error)
	SetAPIKey(ctx context.Context, deviceID, apiKey string) error
	AssignMissingAPIKeys(ctx context.Context, generate func() string) (int, error)
	UpdateDeviceStatus(ctx context.Context, deviceID string, st model.DeviceStatus, seen time.Time) error
	TouchDevice(ctx context.Context, deviceID string, seen time.Time) error

	// device <-> playlist
	AssignPlaylist(ctx context.Context, deviceID string, playlistID int) error
	AssignPlaylistToDevices(ctx context.Context, playlistID int, deviceIDs []string,
		check func(pl *model.Playlist, d *model.Device) error) error
	UnassignPlaylist(ctx context.Context, deviceID string, playlistID int) error
	ListAssignedPlaylists(ctx context.Context, deviceID string) ([]model.Playlist, error)
	ListDeviceIDsForPlaylist(ctx context.Context, playlistID int) ([]string, error)
	IsPlaylistAssigned(ctx context.Context, deviceID string, playlistID int) (bool, error)
	IsVideoAssigned(ctx context.Context, deviceID string, videoID int) (bool, error)

	// video functions
	CreateVideo(ctx context.Context, v *model.Video) (*model.Video, error)
	GetVideo(ctx context.Context, id int) (*model.Video, error)
	ListVideos(ctx context.Context, f VideoFilter) ([]model.Video, error)
	UpdateVideo(ctx context.Context, id int, upd VideoUpdate) error
	DeleteVideo(ctx context.Context, id int) (*model.Video, error)
	ListPlaylistIDsForVideo(ctx context.Context, videoID int) ([]int, error)

	// playlist functions
	CreatePlaylist(ctx context.Context, p *model.Playlist) (*model.Playlist, error)
	GetPlaylist(ctx context.Context, id int) (*model.Playlist, error)
	ListPlaylists(ctx context.Context, f PlaylistFilter) ([]model.Playlist, error)
	UpdatePlaylist(ctx context.Context, id int, upd PlaylistUpdate) error
	DeletePlaylist(ctx context.Context, id int) error
	ListPlaylistVideos(ctx context.Context, playlistID int) ([]model.PlaylistVideo, error)
	WithPlaylistLock(ctx context.Context, playlistID int, fn func(tx PlaylistTx) error) error
}

type UserUpdate struct {
	Email      *string
	FullName   *string
	Department *string
	IsActive   *bool
	IsAdmin    *bool
}

type DeviceFilter struct {
	StoreCode  *string
	ActiveOnly bool
}

// DeviceUpdate fields left nil are unchanged. An empty StoreCode clears it.
type DeviceUpdate struct {
	Name          *string
	Model         *string
	Location      *string
	StoreCode     *string
	IPAddressLAN  *string
	IPAddressWifi *string
	IsActive      *bool
}

type VideoFilter struct {
	Search string
	// ActiveOnly drops inactive rows and rows expired at Now.
	ActiveOnly bool
	Now        time.Time
}

type VideoUpdate struct {
	Title           *string
	Description     *string
	Tags            *string
	Duration        *int
	IsActive        *bool
	ExpirationDate  *time.Time
	ClearExpiration bool
}

type PlaylistFilter struct {
	StoreCode  *string
	Search     string
	ActiveOnly bool
	Now        time.Time
}

// PlaylistUpdate fields left nil are unchanged. An empty StoreCode makes the
// playlist general.
type PlaylistUpdate struct {
	Title           *string
	Description     *string
	StartDate       *time.Time
	ClearStartDate  bool
	ExpirationDate  *time.Time
	ClearExpiration bool
	IsActive        *bool
	StoreCode       *string
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
