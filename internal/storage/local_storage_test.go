package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage("http://localhost:8080/", t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := "evidence/7/abc.jpg"
	require.NoError(t, store.PutObject(ctx, key, "image/jpeg", strings.NewReader("jpeg-bytes"), 10))

	exists, size, err := store.FileExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(10), size)

	url, err := store.GeneratePresignedDownloadURL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/evidence/7/abc.jpg", url)

	rc, err := store.ReadFile(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.DeleteFile(ctx, key))
	exists, _, err = store.FileExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_StaysInsideUploadDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage("http://localhost:8080", dir)
	require.NoError(t, err)

	path, err := store.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))

	_, err = store.resolve("/")
	assert.Error(t, err)
}
