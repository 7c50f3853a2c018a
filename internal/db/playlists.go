package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const playlistColumns = `
	id, title, description, start_date, expiration_date, is_active, store_code,
	creation_date, updated_at`

// @ PLAYLIST
func (s *pgStore) CreatePlaylist(ctx context.Context, p *model.Playlist) (*model.Playlist, error) {
	var out model.Playlist
	const q = `
	INSERT INTO playlists (title, description, start_date, expiration_date, is_active,
	                       store_code, creation_date, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	RETURNING` + playlistColumns + `;`
	if err := s.db.GetContext(ctx, &out, q,
		p.Title, p.Description, p.StartDate, p.ExpirationDate, p.IsActive, p.StoreCode,
	); err != nil {
		log.Error().Err(err).Msg("[db] CreatePlaylist: failed to insert playlist")
		return nil, translate(err, "create playlist")
	}
	return &out, nil
}

func (s *pgStore) GetPlaylist(ctx context.Context, id int) (*model.Playlist, error) {
	var p model.Playlist
	if err := s.db.GetContext(ctx, &p, `SELECT`+playlistColumns+` FROM playlists WHERE id = $1;`, id); err != nil {
		return nil, translate(err, "get playlist")
	}
	return &p, nil
}

func (s *pgStore) ListPlaylists(ctx context.Context, f PlaylistFilter) ([]model.Playlist, error) {
	var out []model.Playlist
	const q = `SELECT` + playlistColumns + `
	FROM playlists
	WHERE ($1::text IS NULL OR store_code = $1)
	  AND ($2::text = '' OR title ILIKE '%' || $2::text || '%')
	  AND (NOT $3::boolean OR (is_active
	       AND (start_date IS NULL OR start_date <= $4)
	       AND (expiration_date IS NULL OR expiration_date > $4)))
	ORDER BY creation_date DESC, id DESC;`
	if err := s.db.SelectContext(ctx, &out, q, f.StoreCode, f.Search, f.ActiveOnly, f.Now); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaylists: failed to select playlists")
		return nil, translate(err, "list playlists")
	}
	return out, nil
}

func (s *pgStore) UpdatePlaylist(ctx context.Context, id int, upd PlaylistUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists
		SET
		title           = COALESCE($2, title),
		description     = COALESCE($3, description),
		start_date      = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($4, start_date) END,
		expiration_date = CASE WHEN $7::boolean THEN NULL ELSE COALESCE($6, expiration_date) END,
		is_active       = COALESCE($8, is_active),
		store_code      = CASE WHEN $9::text IS NULL THEN store_code ELSE NULLIF($9, '') END,
		updated_at      = now()
		WHERE id = $1;`,
		id, upd.Title, upd.Description,
		upd.StartDate, upd.ClearStartDate,
		upd.ExpirationDate, upd.ClearExpiration,
		upd.IsActive, upd.StoreCode,
	)
	return expectOne(res, err, "update playlist")
}

// playlist_videos and device_playlists rows go with it (ON DELETE CASCADE).
func (s *pgStore) DeletePlaylist(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1;`, id)
	return expectOne(res, err, "delete playlist")
}

type playlistVideoRow struct {
	model.PlaylistVideo
	Joined model.Video `db:"v"`
}

// lists the playlist's entries in position order with their videos attached.
func (s *pgStore) ListPlaylistVideos(ctx context.Context, playlistID int) ([]model.PlaylistVideo, error) {
	var rows []playlistVideoRow
	const q = `
	SELECT
	  pv.playlist_id, pv.video_id, pv.position,
	  v.id              AS "v.id",
	  v.title           AS "v.title",
	  v.description     AS "v.description",
	  v.file_path       AS "v.file_path",
	  v.file_size       AS "v.file_size",
	  v.duration        AS "v.duration",
	  v.upload_date     AS "v.upload_date",
	  v.expiration_date AS "v.expiration_date",
	  v.tags            AS "v.tags",
	  v.is_active       AS "v.is_active",
	  v.thumbnail       AS "v.thumbnail"
	FROM playlist_videos pv
	JOIN videos v ON v.id = pv.video_id
	WHERE pv.playlist_id = $1
	ORDER BY pv.position;`
	if err := s.db.SelectContext(ctx, &rows, q, playlistID); err != nil {
		log.Error().Err(err).Int("playlist_id", playlistID).Msg("[db] ListPlaylistVideos: failed to list entries")
		return nil, translate(err, "list playlist videos")
	}

	out := make([]model.PlaylistVideo, len(rows))
	for i := range rows {
		entry := rows[i].PlaylistVideo
		video := rows[i].Joined
		entry.Video = &video
		out[i] = entry
	}
	return out, nil
}

// PlaylistTx exposes the position rows of one playlist inside a transaction
// holding that playlist's row lock.
type PlaylistTx interface {
	Entries(ctx context.Context) ([]model.PlaylistVideo, error)
	VideoExists(ctx context.Context, videoID int) (bool, error)
	Insert(ctx context.Context, videoID, position int) error
	Delete(ctx context.Context, videoID int) error
	SetPosition(ctx context.Context, videoID, position int) error
}

// WithPlaylistLock runs fn in a transaction after locking the playlist row, so
// position changes on the same playlist are applied one writer at a time.
// Returns NotFound if the playlist does not exist.
func (s *pgStore) WithPlaylistLock(ctx context.Context, playlistID int, fn func(tx PlaylistTx) error) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var id int
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM playlists WHERE id = $1 FOR UPDATE;`, playlistID); err != nil {
			return translate(err, "lock playlist")
		}
		if err := fn(&pgPlaylistTx{tx: tx, playlistID: playlistID}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE playlists SET updated_at = now() WHERE id = $1;`, playlistID); err != nil {
			return translate(err, "touch playlist")
		}
		return nil
	})
}

type pgPlaylistTx struct {
	tx         *sqlx.Tx
	playlistID int
}

func (t *pgPlaylistTx) Entries(ctx context.Context) ([]model.PlaylistVideo, error) {
	var out []model.PlaylistVideo
	if err := t.tx.SelectContext(ctx, &out, `
		SELECT playlist_id, video_id, position
		FROM playlist_videos
		WHERE playlist_id = $1
		ORDER BY position;`, t.playlistID); err != nil {
		return nil, translate(err, "list playlist entries")
	}
	return out, nil
}

func (t *pgPlaylistTx) VideoExists(ctx context.Context, videoID int) (bool, error) {
	var ok bool
	err := t.tx.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1);`, videoID)
	return ok, translate(err, "check video")
}

func (t *pgPlaylistTx) Insert(ctx context.Context, videoID, position int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO playlist_videos (playlist_id, video_id, position)
		VALUES ($1, $2, $3);`, t.playlistID, videoID, position)
	return translate(err, "add video to playlist")
}

func (t *pgPlaylistTx) Delete(ctx context.Context, videoID int) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2;`, t.playlistID, videoID)
	return expectOne(res, err, "remove video from playlist")
}

func (t *pgPlaylistTx) SetPosition(ctx context.Context, videoID, position int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE playlist_videos SET position = $3
		WHERE playlist_id = $1 AND video_id = $2;`, t.playlistID, videoID, position)
	return expectOne(res, err, "set position")
}
