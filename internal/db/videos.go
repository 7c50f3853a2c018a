package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const videoColumns = `
	id, title, description, file_path, file_size, duration, upload_date, expiration_date,
	tags, is_active, thumbnail`

func (s *pgStore) CreateVideo(ctx context.Context, v *model.Video) (*model.Video, error) {
	var out model.Video
	const q = `
	INSERT INTO videos (title, description, file_path, file_size, duration, upload_date,
	                    expiration_date, tags, is_active, thumbnail)
	VALUES ($1, $2, $3, $4, $5, now(), $6, $7, $8, $9)
	RETURNING` + videoColumns + `;`
	if err := s.db.GetContext(ctx, &out, q,
		v.Title, v.Description, v.FilePath, v.FileSize, v.Duration,
		v.ExpirationDate, v.Tags, v.IsActive, v.Thumbnail,
	); err != nil {
		log.Error().Err(err).Str("title", v.Title).Msg("[db] CreateVideo: failed to insert video")
		return nil, translate(err, "create video")
	}
	return &out, nil
}

func (s *pgStore) GetVideo(ctx context.Context, id int) (*model.Video, error) {
	var v model.Video
	if err := s.db.GetContext(ctx, &v, `SELECT`+videoColumns+` FROM videos WHERE id = $1;`, id); err != nil {
		return nil, translate(err, "get video")
	}
	return &v, nil
}

func (s *pgStore) ListVideos(ctx context.Context, f VideoFilter) ([]model.Video, error) {
	var out []model.Video
	const q = `SELECT` + videoColumns + `
	FROM videos
	WHERE ($1::text = '' OR title ILIKE '%' || $1::text || '%'
	       OR description ILIKE '%' || $1::text || '%' OR tags ILIKE '%' || $1::text || '%')
	  AND (NOT $2::boolean OR (is_active AND (expiration_date IS NULL OR expiration_date > $3)))
	ORDER BY upload_date DESC, id DESC;`
	if err := s.db.SelectContext(ctx, &out, q, f.Search, f.ActiveOnly, f.Now); err != nil {
		return nil, translate(err, "list videos")
	}
	return out, nil
}

func (s *pgStore) UpdateVideo(ctx context.Context, id int, upd VideoUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE videos
		SET
		title           = COALESCE($2, title),
		description     = COALESCE($3, description),
		tags            = COALESCE($4, tags),
		duration        = COALESCE($5, duration),
		is_active       = COALESCE($6, is_active),
		expiration_date = CASE WHEN $8::boolean THEN NULL ELSE COALESCE($7, expiration_date) END
		WHERE id = $1;`,
		id, upd.Title, upd.Description, upd.Tags, upd.Duration, upd.IsActive,
		upd.ExpirationDate, upd.ClearExpiration,
	)
	return expectOne(res, err, "update video")
}

// removes the row (and its playlist entries, compacting positions) and returns it
// so the caller can clean up the file.
func (s *pgStore) DeleteVideo(ctx context.Context, id int) (*model.Video, error) {
	var v model.Video
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &v,
			`SELECT`+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE;`, id); err != nil {
			return translate(err, "delete video")
		}

		var entries []model.PlaylistVideo
		if err := tx.SelectContext(ctx, &entries, `
			SELECT playlist_id, video_id, position
			FROM playlist_videos
			WHERE video_id = $1
			ORDER BY playlist_id;`, id); err != nil {
			return translate(err, "delete video")
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`SELECT id FROM playlists WHERE id = $1 FOR UPDATE;`, e.PlaylistID); err != nil {
				return translate(err, "lock playlist")
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2;`, e.PlaylistID, id); err != nil {
				return translate(err, "delete video")
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE playlist_videos SET position = position - 1
				WHERE playlist_id = $1 AND position > $2;`, e.PlaylistID, e.Position); err != nil {
				return translate(err, "compact playlist")
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = $1;`, id); err != nil {
			return translate(err, "delete video")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *pgStore) ListPlaylistIDsForVideo(ctx context.Context, videoID int) ([]int, error) {
	var ids []int
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT playlist_id FROM playlist_videos WHERE video_id = $1 ORDER BY playlist_id;`, videoID); err != nil {
		return nil, translate(err, "list video playlists")
	}
	return ids, nil
}
