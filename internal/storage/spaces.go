package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"
)

// SpacesStorage keeps videos in a DigitalOcean Spaces (S3-compatible) bucket.
type SpacesStorage struct {
	client   *s3.S3
	bucket   string
	cdnURL   string
	endpoint string
}

func NewSpacesStorage(endpoint, region, bucket, cdnURL, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesStorage{
		client:   s3.New(sess),
		bucket:   bucket,
		cdnURL:   cdnURL,
		endpoint: endpoint,
	}, nil
}

// SaveFile uploads the video privately and returns its object key.
func (ss *SpacesStorage) SaveFile(ctx context.Context, fileHeader *multipart.FileHeader, filename string) (string, error) {
	normalizedFilename := normalizeFilename(filename)
	log.Debug().Str("original", filename).Str("normalized", normalizedFilename).Msg("[storage] file upload normalized")

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	key := fmt.Sprintf("videos/%s", normalizedFilename)
	_, err = ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(getContentType(normalizedFilename)),
		ACL:         aws.String("private"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("[storage] failed to upload file to Spaces")
		return "", fmt.Errorf("failed to upload to Spaces: %w", err)
	}
	return key, nil
}

func (ss *SpacesStorage) Delete(ctx context.Context, key string) error {
	_, err := ss.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
			return fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}

	_, err = ss.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Locate serves through the CDN when one is configured, otherwise via a short-lived presigned URL.
func (ss *SpacesStorage) Locate(_ context.Context, key string) (Location, error) {
	if ss.cdnURL != "" {
		return Location{URL: fmt.Sprintf("%s/%s", strings.TrimSuffix(ss.cdnURL, "/"), key)}, nil
	}
	req, _ := ss.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(15 * time.Minute)
	if err != nil {
		return Location{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return Location{URL: url}, nil
}
