package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

// ServeVideo streams a local file with range support, or redirects to the
// object store URL when the file lives remotely.
func ServeVideo(ctx *gin.Context, store storage.Storage, v *model.Video) *APIError {
	loc, err := store.Locate(ctx.Request.Context(), v.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			log.Warn().Int("video_id", v.ID).Str("path", v.FilePath).Msg("[api] video file missing")
			return &APIError{Code: http.StatusNotFound, Message: "video file not found"}
		}
		return FromError(err)
	}
	if loc.URL != "" {
		ctx.Redirect(http.StatusFound, loc.URL)
		return nil
	}

	f, err := os.Open(loc.LocalPath)
	if err != nil {
		log.Error().Err(err).Int("video_id", v.ID).Msg("[api] could not open video file")
		return &APIError{Code: http.StatusNotFound, Message: "video file not found"}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return FromError(err)
	}
	http.ServeContent(ctx.Writer, ctx.Request, filepath.Base(loc.LocalPath), info.ModTime(), f)
	return nil
}
