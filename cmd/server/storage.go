package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/config"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

// InitStorage selects and returns the configured storage backend
func InitStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case "spaces":
		spacesStorage, err := storage.NewSpacesStorage(
			cfg.Spaces.Endpoint,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.CDNURL,
			cfg.Spaces.AccessKey,
			cfg.Spaces.SecretKey,
		)
		if err != nil {
			return nil, fmt.Errorf("initialize Spaces storage: %w", err)
		}
		log.Info().Str("bucket", cfg.Spaces.Bucket).Str("cdn", cfg.Spaces.CDNURL).Msg("[storage] using DigitalOcean Spaces")
		return spacesStorage, nil

	case "minio":
		minioStorage, err := storage.NewMinIOStorage(
			ctx,
			cfg.MinIO.Endpoint,
			cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey,
			cfg.MinIO.Bucket,
			cfg.MinIO.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("initialize MinIO storage: %w", err)
		}
		log.Info().Str("endpoint", cfg.MinIO.Endpoint).Str("bucket", cfg.MinIO.Bucket).Msg("[storage] using MinIO")
		return minioStorage, nil
	}

	local := storage.NewLocalStorage(cfg.UploadDir)
	log.Info().Str("dir", cfg.UploadDir).Msg("[storage] using local file storage")
	return local, nil
}
