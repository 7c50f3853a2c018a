package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotExist is returned by Delete and Locate when the object is already gone.
var ErrNotExist = errors.New("stored file does not exist")

// Location tells the download handler how to deliver a stored file.
// Exactly one of LocalPath and URL is set.
type Location struct {
	LocalPath string
	URL       string
}

type Storage interface {
	SaveFile(ctx context.Context, fileHeader *multipart.FileHeader, filename string) (string, error)
	Delete(ctx context.Context, path string) error
	Locate(ctx context.Context, path string) (Location, error)
}

type LocalStorage struct {
	uploadDir string
}

func NewLocalStorage(uploadDir string) *LocalStorage {
	return &LocalStorage{uploadDir: uploadDir}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeFilename creates a unique, normalized filename without spaces
func normalizeFilename(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	baseName := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))

	baseName = strings.ReplaceAll(baseName, " ", "_")
	baseName = unsafeChars.ReplaceAllString(baseName, "")
	if baseName == "" {
		baseName = "video"
	}

	timestamp := time.Now().Format("20060102_150405.000000")
	timestamp = strings.ReplaceAll(timestamp, ".", "_")
	return fmt.Sprintf("%s_%s%s", baseName, timestamp, ext)
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".avi": true, ".mov": true, ".mkv": true, ".m4v": true,
}

// IsVideoFile reports whether filename has a playable video extension.
func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

func (ls *LocalStorage) SaveFile(_ context.Context, fileHeader *multipart.FileHeader, filename string) (string, error) {
	normalizedFilename := normalizeFilename(filename)
	log.Debug().Str("original", filename).Str("normalized", normalizedFilename).Msg("[storage] file upload normalized")
	uploadPath := filepath.Join(ls.uploadDir, normalizedFilename)

	if err := os.MkdirAll(ls.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(uploadPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(uploadPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(uploadPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return uploadPath, nil
}

// inside reports whether path resolves under the upload directory.
func (ls *LocalStorage) inside(path string) bool {
	root, err := filepath.Abs(ls.uploadDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (ls *LocalStorage) Delete(_ context.Context, path string) error {
	if !ls.inside(path) {
		return fmt.Errorf("refusing to delete %s outside %s", path, ls.uploadDir)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (ls *LocalStorage) Locate(_ context.Context, path string) (Location, error) {
	if !ls.inside(path) {
		return Location{}, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Location{}, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return Location{LocalPath: path}, nil
}

func getContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
