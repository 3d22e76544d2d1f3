// Package cache keeps the last fetched MediaInfo on disk so it survives
// restarts. It holds at most one document.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/spf13/afero"
)

const FileName = "media_info.json"

var ErrIO = errors.New("media cache i/o failure")

type Cache struct {
	fs   afero.Fs
	path string
	log  *slog.Logger

	// serializes writers within the process; across processes the last
	// rename wins
	mu sync.Mutex
}

// New places the cache file next to the download directory.
func New(fs afero.Fs, downloadPath string, log *slog.Logger) *Cache {
	dir := filepath.Dir(filepath.Clean(downloadPath))

	return &Cache{
		fs:   fs,
		path: filepath.Join(dir, FileName),
		log:  log.With(slog.String("component", "media-cache")),
	}
}

func (c *Cache) Path() string { return c.path }

// Save overwrites the cached document.
func (c *Cache) Save(info *internal.MediaInfo) error {
	if info == nil {
		return fmt.Errorf("%w: nil media info", ErrIO)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp := c.path + ".tmp"

	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := c.fs.Rename(tmp, c.path); err != nil {
		if rmErr := c.fs.Remove(tmp); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.log.Debug("media info cached", slog.String("url", info.URL))
	return nil
}

// Restore returns nil when nothing usable is cached. A corrupt file is a
// cache miss.
func (c *Cache) Restore() *internal.MediaInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := afero.ReadFile(c.fs, c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.log.Error("failed to read media cache", slog.Any("err", err))
		return nil
	}

	var info internal.MediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		c.log.Warn("discarding corrupt media cache", slog.String("path", c.path), slog.Any("err", err))
		return nil
	}

	return &info
}

// Clear removes the cached document, if any.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fs.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Error("failed to clear media cache", slog.Any("err", err))
	}
}
