package storage

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestNormalizeFilename(t *testing.T) {
	got := normalizeFilename("../Spring Promo (final).MP4")
	assert.True(t, strings.HasPrefix(got, "Spring_Promo_final_"), got)
	assert.True(t, strings.HasSuffix(got, ".mp4"), got)
	assert.NotContains(t, got, "/")

	assert.True(t, strings.HasPrefix(normalizeFilename("???.mov"), "video_"))
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("a.MP4"))
	assert.True(t, IsVideoFile("b.webm"))
	assert.False(t, IsVideoFile("c.exe"))
	assert.False(t, IsVideoFile("noext"))
}

func TestLocalStorageLifecycle(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(dir)
	ctx := context.Background()

	path, err := ls.SaveFile(ctx, fileHeader(t, "clip.mp4", []byte("frames")), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))

	loc, err := ls.Locate(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, loc.LocalPath)

	require.NoError(t, ls.Delete(ctx, path))
	err = ls.Delete(ctx, path)
	assert.True(t, errors.Is(err, ErrNotExist))

	_, err = ls.Locate(ctx, path)
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestLocalStorageStaysInsideUploadDir(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(filepath.Join(dir, "uploads"))
	outside := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	assert.Error(t, ls.Delete(context.Background(), outside))
	_, err := ls.Locate(context.Background(), outside)
	assert.True(t, errors.Is(err, ErrNotExist))

	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
