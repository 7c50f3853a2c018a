package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const deviceColumns = `
	id, device_id, mac_address, name, model, ip_address_lan, ip_address_wifi, location,
	store_code, is_active, api_key, cpu_temp, memory_usage, disk_usage, videoloop_status,
	kiosk_status, last_seen, registered_at`

// inserts the device and its initial playlist assignments in one transaction.
func (s *pgStore) RegisterDevice(ctx context.Context, d *model.Device, playlistIDs []int) (*model.Device, error) {
	var out model.Device
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var taken int
		if err := tx.GetContext(ctx, &taken,
			`SELECT count(*) FROM devices WHERE device_id = $1;`, d.DeviceID); err != nil {
			return translate(err, "register device")
		}
		if taken > 0 {
			return errs.Duplicate("device %q is already registered", d.DeviceID)
		}
		if err := tx.GetContext(ctx, &taken,
			`SELECT count(*) FROM devices WHERE mac_address = $1;`, d.MACAddress); err != nil {
			return translate(err, "register device")
		}
		if taken > 0 {
			return errs.Duplicate("MAC address %s is already registered", d.MACAddress)
		}

		const q = `
		INSERT INTO devices (device_id, mac_address, name, model, ip_address_lan, ip_address_wifi,
		                     location, store_code, is_active, api_key, registered_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING` + deviceColumns + `;`
		if err := tx.GetContext(ctx, &out, q,
			d.DeviceID, d.MACAddress, d.Name, d.Model, d.IPAddressLAN, d.IPAddressWifi,
			d.Location, d.StoreCode, d.IsActive, d.APIKey,
		); err != nil {
			log.Error().Err(err).Str("device_id", d.DeviceID).Msg("[db] RegisterDevice: failed to insert device")
			return translate(err, "register device")
		}

		for _, pid := range playlistIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO device_playlists (device_id, playlist_id, assigned_at)
				VALUES ($1, $2, now())
				ON CONFLICT DO NOTHING;`,
				d.DeviceID, pid,
			); err != nil {
				log.Error().Err(err).Str("device_id", d.DeviceID).Int("playlist_id", pid).
					Msg("[db] RegisterDevice: failed to assign playlist, rolling back")
				return translate(err, "assign playlist")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *pgStore) getDevice(ctx context.Context, where string, arg any) (*model.Device, error) {
	var d model.Device
	if err := s.db.GetContext(ctx, &d, `SELECT`+deviceColumns+` FROM devices WHERE `+where, arg); err != nil {
		return nil, translate(err, "get device")
	}
	return &d, nil
}

func (s *pgStore) GetDeviceByID(ctx context.Context, id int) (*model.Device, error) {
	return s.getDevice(ctx, `id = $1;`, id)
}

func (s *pgStore) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	return s.getDevice(ctx, `device_id = $1;`, deviceID)
}

func (s *pgStore) GetDeviceByAPIKey(ctx context.Context, apiKey string) (*model.Device, error) {
	return s.getDevice(ctx, `api_key = $1;`, apiKey)
}

func (s *pgStore) ListDevices(ctx context.Context, f DeviceFilter) ([]model.Device, error) {
	var out []model.Device
	const q = `SELECT` + deviceColumns + `
	FROM devices
	WHERE ($1::text IS NULL OR store_code = $1)
	  AND (NOT $2::boolean OR is_active)
	ORDER BY name, id;`
	if err := s.db.SelectContext(ctx, &out, q, f.StoreCode, f.ActiveOnly); err != nil {
		return nil, translate(err, "list devices")
	}
	return out, nil
}

func (s *pgStore) UpdateDevice(ctx context.Context, id int, upd DeviceUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET
		name            = COALESCE($2, name),
		model           = COALESCE($3, model),
		location        = COALESCE($4, location),
		store_code      = CASE WHEN $5::text IS NULL THEN store_code ELSE NULLIF($5, '') END,
		ip_address_lan  = COALESCE($6, ip_address_lan),
		ip_address_wifi = COALESCE($7, ip_address_wifi),
		is_active       = COALESCE($8, is_active)
		WHERE id = $1;`,
		id, upd.Name, upd.Model, upd.Location, upd.StoreCode, upd.IPAddressLAN, upd.IPAddressWifi, upd.IsActive,
	)
	return expectOne(res, err, "update device")
}

// assignments go with the row (ON DELETE CASCADE).
func (s *pgStore) DeleteDevice(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1;`, id)
	return expectOne(res, err, "delete device")
}

// stores apiKey only if the device has none yet; reports whether it did.
func (s *pgStore) ClaimAPIKey(ctx context.Context, deviceID, apiKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET api_key = $2 WHERE device_id = $1 AND api_key IS NULL;`, deviceID, apiKey)
	n, err := affected(res, err, "claim api key")
	return n > 0, err
}

func (s *pgStore) SetAPIKey(ctx context.Context, deviceID, apiKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET api_key = $2 WHERE device_id = $1;`, deviceID, apiKey)
	return expectOne(res, err, "set api key")
}

func (s *pgStore) AssignMissingAPIKeys(ctx context.Context, generate func() string) (int, error) {
	assigned := 0
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var ids []string
		if err := tx.SelectContext(ctx, &ids,
			`SELECT device_id FROM devices WHERE api_key IS NULL FOR UPDATE;`); err != nil {
			return translate(err, "list devices without key")
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE devices SET api_key = $2 WHERE device_id = $1;`, id, generate()); err != nil {
				return translate(err, "assign api key")
			}
			log.Info().Str("device_id", id).Msg("[db] assigned api key")
		}
		assigned = len(ids)
		return nil
	})
	return assigned, err
}

// overwrites the reported metrics with the latest values.
func (s *pgStore) UpdateDeviceStatus(ctx context.Context, deviceID string, st model.DeviceStatus, seen time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET
		cpu_temp         = $2,
		memory_usage     = $3,
		disk_usage       = $4,
		videoloop_status = COALESCE($5, videoloop_status),
		kiosk_status     = COALESCE($6, kiosk_status),
		ip_address_lan   = COALESCE($7, ip_address_lan),
		ip_address_wifi  = COALESCE($8, ip_address_wifi),
		last_seen        = $9
		WHERE device_id = $1;`,
		deviceID, st.CPUTemp, st.MemoryUsage, st.DiskUsage, st.VideoloopState, st.KioskState,
		st.IPAddressLAN, st.IPAddressWifi, seen,
	)
	return expectOne(res, err, "update device status")
}

func (s *pgStore) TouchDevice(ctx context.Context, deviceID string, seen time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE devices SET last_seen = $2 WHERE device_id = $1;`, deviceID, seen)
	return expectOne(res, err, "touch device")
}

func (s *pgStore) AssignPlaylist(ctx context.Context, deviceID string, playlistID int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_playlists (device_id, playlist_id, assigned_at)
		VALUES ($1, $2, now())
		ON CONFLICT (device_id, playlist_id) DO NOTHING;`,
		deviceID, playlistID,
	)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Int("playlist_id", playlistID).
			Msg("[db] AssignPlaylist: failed to assign playlist to device")
	}
	return translate(err, "assign playlist")
}

// AssignPlaylistToDevices assigns the playlist to every listed device in one
// transaction. The playlist and device rows are share-locked and passed to check
// before any insert; an error from check or from any insert rolls back the batch.
func (s *pgStore) AssignPlaylistToDevices(ctx context.Context, playlistID int, deviceIDs []string,
	check func(pl *model.Playlist, d *model.Device) error) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var pl model.Playlist
		if err := tx.GetContext(ctx, &pl,
			`SELECT`+playlistColumns+` FROM playlists WHERE id = $1 FOR SHARE;`, playlistID); err != nil {
			return translate(err, "lock playlist")
		}
		for _, id := range deviceIDs {
			var d model.Device
			if err := tx.GetContext(ctx, &d,
				`SELECT`+deviceColumns+` FROM devices WHERE device_id = $1 FOR SHARE;`, id); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errs.NotFound("device %q not found", id)
				}
				return translate(err, "lock device")
			}
			if check != nil {
				if err := check(&pl, &d); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO device_playlists (device_id, playlist_id, assigned_at)
				VALUES ($1, $2, now())
				ON CONFLICT (device_id, playlist_id) DO NOTHING;`,
				id, playlistID,
			); err != nil {
				log.Error().Err(err).Str("device_id", id).Int("playlist_id", playlistID).
					Msg("[db] AssignPlaylistToDevices: failed to assign, rolling back")
				return translate(err, "assign playlist")
			}
		}
		return nil
	})
}

func (s *pgStore) UnassignPlaylist(ctx context.Context, deviceID string, playlistID int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_playlists WHERE device_id = $1 AND playlist_id = $2;`, deviceID, playlistID)
	return expectOne(res, err, "unassign playlist")
}

func (s *pgStore) ListAssignedPlaylists(ctx context.Context, deviceID string) ([]model.Playlist, error) {
	var out []model.Playlist
	const q = `
	SELECT p.id, p.title, p.description, p.start_date, p.expiration_date, p.is_active,
	       p.store_code, p.creation_date, p.updated_at
	FROM device_playlists dp
	JOIN playlists p ON p.id = dp.playlist_id
	WHERE dp.device_id = $1
	ORDER BY dp.assigned_at, p.id;`
	if err := s.db.SelectContext(ctx, &out, q, deviceID); err != nil {
		return nil, translate(err, "list device playlists")
	}
	return out, nil
}

func (s *pgStore) ListDeviceIDsForPlaylist(ctx context.Context, playlistID int) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT device_id FROM device_playlists WHERE playlist_id = $1 ORDER BY device_id;`, playlistID); err != nil {
		return nil, translate(err, "list playlist devices")
	}
	return ids, nil
}

func (s *pgStore) IsPlaylistAssigned(ctx context.Context, deviceID string, playlistID int) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM device_playlists WHERE device_id = $1 AND playlist_id = $2
		);`, deviceID, playlistID)
	return ok, translate(err, "check playlist assignment")
}

func (s *pgStore) IsVideoAssigned(ctx context.Context, deviceID string, videoID int) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1
			FROM device_playlists dp
			JOIN playlist_videos pv ON pv.playlist_id = dp.playlist_id
			WHERE dp.device_id = $1 AND pv.video_id = $2
		);`, deviceID, videoID)
	return ok, translate(err, "check video assignment")
}
