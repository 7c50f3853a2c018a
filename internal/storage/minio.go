package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage connects and creates the bucket when it does not exist yet.
func NewMinIOStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("[storage] created MinIO bucket")
	}

	return &MinIOStorage{client: client, bucket: bucket}, nil
}

func (m *MinIOStorage) SaveFile(ctx context.Context, fileHeader *multipart.FileHeader, filename string) (string, error) {
	normalizedFilename := normalizeFilename(filename)
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s", time.Now().Format("2006/01/02"), normalizedFilename)
	_, err = m.client.PutObject(ctx, m.bucket, objectName, src, fileHeader.Size, minio.PutObjectOptions{
		ContentType: getContentType(normalizedFilename),
	})
	if err != nil {
		log.Error().Err(err).Str("object", objectName).Msg("[storage] failed to upload file to MinIO")
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return objectName, nil
}

func (m *MinIOStorage) Delete(ctx context.Context, objectName string) error {
	if _, err := m.client.StatObject(ctx, m.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrNotExist, objectName)
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (m *MinIOStorage) Locate(ctx context.Context, objectName string) (Location, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, 15*time.Minute, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return Location{URL: url.String()}, nil
}

func (m *MinIOStorage) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}
