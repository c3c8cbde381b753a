package fs

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestUploadDownloadDelete(t *testing.T) {
	ctx := context.Background()
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, backend.Upload(ctx, "media/blob-1", "image/png", strings.NewReader("png bytes")))

	rc, err := backend.Download(ctx, "media/blob-1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "png bytes", string(data))

	require.NoError(t, backend.Delete(ctx, "media/blob-1"))

	_, err = backend.Download(ctx, "media/blob-1")
	assert.Error(t, err)

	assert.Error(t, backend.Delete(ctx, "media/blob-1"))
}

func TestURLsRequirePrefix(t *testing.T) {
	ctx := context.Background()

	bare, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = bare.GetUploadURL(ctx, "blob-1")
	assert.Error(t, err)
	_, err = bare.GetDownloadURL(ctx, "blob-1")
	assert.Error(t, err)

	fronted, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "http://localhost:8080/media"})
	require.NoError(t, err)

	uploadURL, err := fronted.GetUploadURL(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/upload/blob-1", uploadURL)

	downloadURL, err := fronted.GetDownloadURL(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/download/blob-1", downloadURL)
}

func TestDeleteCleansEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	backend, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	require.NoError(t, backend.Upload(ctx, "a/b/blob-1", "image/png", strings.NewReader("x")))
	require.NoError(t, backend.Delete(ctx, "a/b/blob-1"))

	entries, err := filepath.Glob(filepath.Join(base, "*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
