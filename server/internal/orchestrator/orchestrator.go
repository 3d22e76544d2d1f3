// Package orchestrator is the single point of control over what yt-dlp is
// doing: metadata fetches, the one active download and its cancellation.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	neturl "net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/ytdlp"
	"golang.org/x/sync/singleflight"
)

const metadataTimeout = 2 * time.Minute

type Tool interface {
	Metadata(ctx context.Context, url string) (*internal.MediaInfo, error)
	Download(req internal.DownloadRequest, dir string) (ytdlp.Handle, error)
	Version(ctx context.Context) (string, error)
	Update(ctx context.Context) error
}

// MediaSource provides the currently selected media, if any.
type MediaSource interface {
	Restore() *internal.MediaInfo
}

type Options struct {
	Tool         Tool
	Hub          *events.Hub
	Bus          *events.Bus
	Media        MediaSource
	DownloadPath string
}

// Fetches and downloads are independent: each runs its own yt-dlp process,
// so they may overlap freely. At most one download is active at a time.
type Orchestrator struct {
	tool         Tool
	hub          *events.Hub
	bus          *events.Bus
	media        MediaSource
	downloadPath string
	log          *slog.Logger

	fetches  singleflight.Group
	fetching atomic.Int32

	mu     sync.Mutex
	active *session

	versionMu sync.Mutex
	version   string
}

type session struct {
	id        string
	req       internal.DownloadRequest
	handle    ytdlp.Handle
	startedAt time.Time
	progress  *internal.DownloadProgress
	filePath  string
	stopping  bool
}

func New(opts Options, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		tool:         opts.Tool,
		hub:          opts.Hub,
		bus:          opts.Bus,
		media:        opts.Media,
		downloadPath: opts.DownloadPath,
		log:          log.With(slog.String("component", "orchestrator")),
	}
}

func shortId(id string) string {
	return strings.Split(id, "-")[0]
}

// validateURL accepts absolute http(s) urls only. Anything else could be
// taken by yt-dlp for an option or a local file.
func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}

	u, err := neturl.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return raw, ErrInvalidURL
	}

	return raw, nil
}

// FetchMetadata blocks until yt-dlp answers or ctx is done. Concurrent
// fetches of the same URL share one invocation, which is not tied to any
// single caller and is bounded by metadataTimeout instead.
//
// Failures are returned to the caller and also broadcast on the error
// stream; the returned error is authoritative.
func (o *Orchestrator) FetchMetadata(ctx context.Context, url string) (*internal.MediaInfo, error) {
	url, err := validateURL(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	o.fetching.Add(1)
	defer o.fetching.Add(-1)

	ch := o.fetches.DoChan(url, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metadataTimeout)
		defer cancel()

		info, err := o.tool.Metadata(ctx, url)
		if err != nil {
			o.log.Error("failed to retrieve metadata", slog.String("url", url), slog.Any("err", err))
			if !errors.Is(err, context.Canceled) {
				o.hub.PublishError("", err.Error())
			}
			return nil, err
		}

		o.log.Info("metadata retrieved",
			slog.String("url", url),
			slog.String("title", info.Title),
			slog.Int("formats", len(info.Formats)),
		)
		o.bus.MetadataFetched(info)
		return info, nil
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, &FetchError{URL: url, Err: res.Err}
		}
		return res.Val.(*internal.MediaInfo), nil
	}
}

// Fetching reports whether a metadata fetch is in flight.
func (o *Orchestrator) Fetching() bool {
	return o.fetching.Load() > 0
}

// StartDownload launches a download and returns its session id without
// waiting for it. An empty FormatId lets yt-dlp choose.
func (o *Orchestrator) StartDownload(req internal.DownloadRequest) (string, error) {
	url, err := validateURL(req.URL)
	if err != nil {
		return "", &DownloadError{URL: req.URL, FormatId: req.FormatId, Err: err}
	}
	req.URL = url

	s := &session{
		id:        uuid.NewString(),
		req:       req,
		startedAt: time.Now(),
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return "", ErrAlreadyInProgress
	}
	o.active = s
	o.mu.Unlock()

	h, err := o.tool.Download(req, o.downloadPath)
	if err != nil {
		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()

		o.log.Error("failed to start download", slog.String("url", req.URL), slog.Any("err", err))
		o.hub.PublishError(s.id, err.Error())
		return "", &DownloadError{URL: req.URL, FormatId: req.FormatId, Err: err}
	}

	o.mu.Lock()
	s.handle = h
	stopping := s.stopping
	o.mu.Unlock()

	o.log.Info("download started",
		slog.String("id", shortId(s.id)),
		slog.String("url", req.URL),
		slog.String("format", req.FormatId),
	)

	// requested, nothing reported yet; the previous completion is history
	o.hub.ClearCompletion()
	o.hub.PublishProgress(s.id, nil)

	if stopping {
		o.cancel(s, h)
	}

	go o.watch(s, h)

	return s.id, nil
}

// DownloadBest downloads the best format of the currently selected media.
func (o *Orchestrator) DownloadBest() (string, error) {
	var info *internal.MediaInfo
	if o.media != nil {
		info = o.media.Restore()
	}
	if info == nil {
		return "", ErrNoMedia
	}

	req := internal.DownloadRequest{URL: info.URL, Title: info.Title}
	if best, ok := info.Best(); ok {
		req.FormatId = best.FormatId
	}

	return o.StartDownload(req)
}

func (o *Orchestrator) watch(s *session, h ytdlp.Handle) {
	for ev := range h.Events() {
		switch ev.Kind {
		case ytdlp.EventProgress:
			p := ev.Progress

			o.mu.Lock()
			s.progress = &p
			o.mu.Unlock()

			o.hub.PublishProgress(s.id, &p)

		case ytdlp.EventFilePath:
			o.mu.Lock()
			s.filePath = ev.FilePath
			o.mu.Unlock()

		default:
			if ev.Kind.Terminal() {
				o.finish(s, ev)
			}
		}
	}
}

func (o *Orchestrator) finish(s *session, ev ytdlp.Event) {
	o.mu.Lock()
	if o.active == s {
		o.active = nil
	}
	stopping := s.stopping
	if ev.FilePath != "" {
		s.filePath = ev.FilePath
	}
	rec := internal.SessionRecord{
		Id:         s.id,
		URL:        s.req.URL,
		FormatId:   s.req.FormatId,
		Title:      s.req.Title,
		FilePath:   s.filePath,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
	}
	o.mu.Unlock()

	log := o.log.With(slog.String("id", shortId(s.id)), slog.String("url", s.req.URL))

	switch {
	case ev.Kind == ytdlp.EventCompleted:
		rec.Status = internal.StatusCompleted
		log.Info("download completed", slog.String("path", rec.FilePath))
		o.hub.PublishCompletion(s.id)

	case ev.Kind == ytdlp.EventStopped, stopping:
		rec.Status = internal.StatusStopped
		log.Info("download stopped")

	default:
		rec.Status = internal.StatusFailed
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
		log.Error("download failed", slog.String("err", rec.Error))
		o.hub.PublishError(s.id, rec.Error)
	}

	o.bus.SessionFinished(rec)
}

// Stop requests cancellation of the active download and returns at once.
// It is a no-op without an active download, emits no events itself and
// only logs failures.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	s := o.active
	if s == nil {
		o.mu.Unlock()
		return
	}
	s.stopping = true
	h := s.handle
	o.mu.Unlock()

	// not launched yet; StartDownload cancels once it is
	if h == nil {
		return
	}

	o.cancel(s, h)
}

func (o *Orchestrator) cancel(s *session, h ytdlp.Handle) {
	o.log.Info("stopping download", slog.String("id", shortId(s.id)))

	if err := h.Cancel(); err != nil {
		o.log.Error("failed to stop download",
			slog.String("id", shortId(s.id)),
			slog.Any("err", err),
		)
	}
}

// Current returns the active session, or nil.
func (o *Orchestrator) Current() *internal.SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.active
	if s == nil {
		return nil
	}

	snap := &internal.SessionSnapshot{
		Id:        s.id,
		Request:   s.req,
		Status:    internal.StatusDownloading,
		Stopping:  s.stopping,
		StartedAt: s.startedAt,
	}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
	}

	return snap
}

// Version of yt-dlp, queried once per process.
func (o *Orchestrator) Version(ctx context.Context) (string, error) {
	o.versionMu.Lock()
	defer o.versionMu.Unlock()

	if o.version != "" {
		return o.version, nil
	}

	v, err := o.tool.Version(ctx)
	if err != nil {
		return "", err
	}

	o.version = v
	return v, nil
}

// UpdateTool self updates yt-dlp and forgets the memoized version.
func (o *Orchestrator) UpdateTool(ctx context.Context) error {
	o.log.Info("updating yt-dlp executable to the latest release")

	o.versionMu.Lock()
	defer o.versionMu.Unlock()

	if err := o.tool.Update(ctx); err != nil {
		o.log.Error("failed updating yt-dlp", slog.Any("err", err))
		return err
	}

	o.version = ""
	return nil
}
