// Package library lists and manages the media files that ended up in the
// download directory.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/sys"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var (
	MediaExtensions = []string{"mp4", "webm", "mp3", "mkv", "avi", "m4a"}
	audioExtensions = []string{"mp3", "m4a"}
)

var (
	ErrInvalidName  = errors.New("invalid file name")
	ErrNotMedia     = errors.New("not a media file")
	ErrNoPublicPath = errors.New("public path not configured")
)

const (
	defaultWorkers      = 4
	thumbnailCacheSize  = 256
	maxDuplicateSuffix  = 1000
	defaultDirectoryMod = 0o755
)

type Options struct {
	DownloadPath string
	PublicPath   string
	Workers      int
}

type Lister struct {
	fs         afero.Fs
	dir        string
	publicDir  string
	workers    int
	thumbnails Thumbnailer
	cache      *lru.Cache[string, []byte]
	log        *slog.Logger
}

func New(fs afero.Fs, opts Options, thumbnails Thumbnailer, log *slog.Logger) (*Lister, error) {
	if opts.DownloadPath == "" {
		return nil, errors.New("download path not configured")
	}

	cache, err := lru.New[string, []byte](thumbnailCacheSize)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	if err := fs.MkdirAll(opts.DownloadPath, defaultDirectoryMod); err != nil {
		return nil, fmt.Errorf("cannot create download directory: %w", err)
	}

	return &Lister{
		fs:         fs,
		dir:        opts.DownloadPath,
		publicDir:  opts.PublicPath,
		workers:    workers,
		thumbnails: thumbnails,
		cache:      cache,
		log:        log.With(slog.String("component", "library")),
	}, nil
}

func (l *Lister) Dir() string { return l.dir }

func IsMedia(name string) bool {
	return slices.Contains(MediaExtensions, extension(name))
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// List scans the download directory (not recursively). Order is whatever
// the filesystem returns. Failures degrade to a partial or empty result.
func (l *Lister) List(ctx context.Context) []internal.DownloadInfo {
	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		l.log.Error("failed to list downloads", slog.String("dir", l.dir), slog.Any("err", err))
		return []internal.DownloadInfo{}
	}

	files := make([]internal.DownloadInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsMedia(e.Name()) {
			continue
		}
		files = append(files, l.describe(e))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i := range files {
		g.Go(func() error {
			files[i].Thumbnail = l.thumbnail(ctx, &files[i])
			return nil
		})
	}

	g.Wait()

	return files
}

func (l *Lister) describe(fi os.FileInfo) internal.DownloadInfo {
	return internal.DownloadInfo{
		Name:      fi.Name(),
		Path:      filepath.Join(l.dir, fi.Name()),
		Ext:       extension(fi.Name()),
		Bytes:     fi.Size(),
		Size:      internal.ToMega(fi.Size()),
		HumanSize: humanize.IBytes(uint64(fi.Size())),
		ModTime:   fi.ModTime(),
	}
}

// thumbnail never fails: errors yield no thumbnail.
func (l *Lister) thumbnail(ctx context.Context, d *internal.DownloadInfo) []byte {
	if l.thumbnails == nil || slices.Contains(audioExtensions, d.Ext) {
		return nil
	}

	key := fmt.Sprintf("%s:%d:%d", d.Path, d.Bytes, d.ModTime.UnixNano())
	if thumb, ok := l.cache.Get(key); ok {
		return thumb
	}

	thumb, err := l.thumbnails.Thumbnail(ctx, d.Path)
	if err != nil {
		l.log.Debug("no thumbnail", slog.String("file", d.Name), slog.Any("err", err))
		return nil
	}

	l.cache.Add(key, thumb)
	return thumb
}

// Thumbnail of a single file.
func (l *Lister) Thumbnail(ctx context.Context, name string) ([]byte, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	fi, err := l.fs.Stat(path)
	if err != nil {
		return nil, err
	}

	d := l.describe(fi)
	thumb := l.thumbnail(ctx, &d)
	if thumb == nil {
		return nil, fs.ErrNotExist
	}
	return thumb, nil
}

// resolve maps a bare file name to a path inside the download directory.
func (l *Lister) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	if !IsMedia(name) {
		return "", ErrNotMedia
	}
	return filepath.Join(l.dir, name), nil
}

// Open a media file for streaming (playing or sharing).
func (l *Lister) Open(name string) (afero.File, os.FileInfo, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := l.fs.Open(path)
	if err != nil {
		return nil, nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return f, fi, nil
}

func (l *Lister) Delete(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}

	if err := l.fs.Remove(path); err != nil {
		return err
	}

	l.log.Info("deleted file", slog.String("file", name))
	return nil
}

// DeleteAll empties the download directory.
func (l *Lister) DeleteAll() error {
	if err := l.fs.RemoveAll(l.dir); err != nil {
		return err
	}

	l.cache.Purge()

	if err := l.fs.MkdirAll(l.dir, defaultDirectoryMod); err != nil {
		return err
	}

	l.log.Info("deleted all downloads", slog.String("dir", l.dir))
	return nil
}

// MoveToPublic moves a file into the configured public directory and
// returns its new path. Existing files are never overwritten.
func (l *Lister) MoveToPublic(name string) (string, error) {
	if l.publicDir == "" {
		return "", ErrNoPublicPath
	}

	src, err := l.resolve(name)
	if err != nil {
		return "", err
	}

	if _, err := l.fs.Stat(src); err != nil {
		return "", err
	}

	if err := l.fs.MkdirAll(l.publicDir, defaultDirectoryMod); err != nil {
		return "", err
	}

	dst, err := l.freeName(name)
	if err != nil {
		return "", err
	}

	if err := l.fs.Rename(src, dst); err == nil {
		l.log.Info("moved file", slog.String("from", src), slog.String("to", dst))
		return dst, nil
	}

	// rename fails across devices
	if err := l.copy(src, dst); err != nil {
		l.fs.Remove(dst)
		return "", err
	}

	if err := l.fs.Remove(src); err != nil {
		return "", err
	}

	l.log.Info("copied file", slog.String("from", src), slog.String("to", dst))
	return dst, nil
}

func (l *Lister) freeName(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(l.publicDir, name)
	for i := 1; i <= maxDuplicateSuffix; i++ {
		exists, err := afero.Exists(l.fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(l.publicDir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}

	return "", fmt.Errorf("too many copies of %s", name)
}

func (l *Lister) copy(src, dst string) error {
	in, err := l.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := l.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// FreeSpace left on the volume holding the download directory, in bytes.
func (l *Lister) FreeSpace() (uint64, error) {
	return sys.FreeSpace(l.dir)
}
