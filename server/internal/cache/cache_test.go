package cache

import (
	"io"
	"log/slog"
	"testing"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media/Downloads", 0o755))

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return New(fs, "/media/Downloads", log), fs
}

func sampleInfo() *internal.MediaInfo {
	return &internal.MediaInfo{
		URL:         "https://example.com/v",
		Title:       "Clip",
		Thumbnail:   "https://i.example.com/t.jpg",
		Description: "a clip",
		Duration:    61,
		Formats: []internal.MediaFormat{
			{FormatId: "22", FormatNote: "720p", Resolution: "1280x720", FileSize: "8388608", MediaLink: "https://m/22", Ext: "mp4"},
			{FormatId: "18", FormatNote: "360p", Resolution: "640x360", Ext: "mp4"},
		},
	}
}

func TestCachePath(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Equal(t, "/media/media_info.json", c.Path())
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)

	info := sampleInfo()
	require.NoError(t, c.Save(info))

	assert.Equal(t, info, c.Restore())

	// overwritten, not appended
	other := &internal.MediaInfo{URL: "https://example.com/other", Formats: []internal.MediaFormat{}}
	require.NoError(t, c.Save(other))
	assert.Equal(t, other, c.Restore())
}

func TestCacheRestoreMissing(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Nil(t, c.Restore())
}

func TestCacheRestoreCorrupt(t *testing.T) {
	c, fs := newTestCache(t)
	require.NoError(t, afero.WriteFile(fs, c.Path(), []byte(`{"url": "https://exa`), 0o644))

	assert.Nil(t, c.Restore())
}

func TestCacheClear(t *testing.T) {
	c, fs := newTestCache(t)
	require.NoError(t, c.Save(sampleInfo()))

	c.Clear()
	assert.Nil(t, c.Restore())

	exists, err := afero.Exists(fs, c.Path())
	require.NoError(t, err)
	assert.False(t, exists)

	// idempotent
	c.Clear()
	assert.Nil(t, c.Restore())
}

func TestCacheSaveFailure(t *testing.T) {
	c, fs := newTestCache(t)
	c.fs = afero.NewReadOnlyFs(fs)

	err := c.Save(sampleInfo())
	assert.ErrorIs(t, err, ErrIO)
	assert.Nil(t, c.Restore())
}
