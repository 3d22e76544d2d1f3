package rpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/history"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
)

const metadataTimeout = 2 * time.Minute

type Orchestrator interface {
	FetchMetadata(ctx context.Context, url string) (*internal.MediaInfo, error)
	StartDownload(req internal.DownloadRequest) (string, error)
	DownloadBest() (string, error)
	Stop()
	Current() *internal.SessionSnapshot
	Version(ctx context.Context) (string, error)
	UpdateTool(ctx context.Context) error
}

type MediaCache interface {
	Restore() *internal.MediaInfo
}

type Service struct {
	orchestrator Orchestrator
	cache        MediaCache
	library      *library.Lister
	history      *history.Store
	hub          *events.Hub
	log          *slog.Logger
}

type NoArgs struct{}

type InfoArgs struct {
	URL string `json:"url"`
}

type Cached struct {
	Info *internal.MediaInfo `json:"info"`
}

type Current struct {
	Session *internal.SessionSnapshot `json:"session"`
}

type Progress struct {
	Progress  *internal.DownloadProgress `json:"progress"`
	Completed bool                       `json:"completed"`
}

// FetchInfo retrieves the metadata of a URL.
func (s *Service) FetchInfo(args InfoArgs, info *internal.MediaInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	res, err := s.orchestrator.FetchMetadata(ctx, args.URL)
	if err != nil {
		return err
	}

	*info = *res
	return nil
}

// CachedInfo returns the last selected media; Info is nil when none.
func (s *Service) CachedInfo(args NoArgs, cached *Cached) error {
	cached.Info = s.cache.Restore()
	return nil
}

// Download starts a download. The result is the new session id.
func (s *Service) Download(args internal.DownloadRequest, id *string) error {
	res, err := s.orchestrator.StartDownload(args)
	if err != nil {
		return err
	}

	*id = res
	return nil
}

func (s *Service) DownloadBest(args NoArgs, id *string) error {
	res, err := s.orchestrator.DownloadBest()
	if err != nil {
		return err
	}

	*id = res
	return nil
}

func (s *Service) Stop(args NoArgs, result *struct{}) error {
	s.orchestrator.Stop()
	return nil
}

func (s *Service) Current(args NoArgs, current *Current) error {
	current.Session = s.orchestrator.Current()
	return nil
}

// Progress returns the latest progress snapshot, for clients that poll
// instead of holding the event feed open.
func (s *Service) Progress(args NoArgs, progress *Progress) error {
	progress.Progress, _ = s.hub.Progress.Latest()
	progress.Completed, _ = s.hub.Completion.Latest()
	return nil
}

func (s *Service) Version(args NoArgs, version *string) error {
	v, err := s.orchestrator.Version(context.Background())
	if err != nil {
		return err
	}

	*version = v
	return nil
}

// Updates the yt-dlp binary using its builtin function
func (s *Service) UpdateExecutable(args NoArgs, updated *bool) error {
	if err := s.orchestrator.UpdateTool(context.Background()); err != nil {
		*updated = false
		return err
	}

	*updated = true
	s.log.Info("succesfully updated yt-dlp")
	return nil
}

func (s *Service) Library(args NoArgs, files *[]internal.DownloadInfo) error {
	*files = s.library.List(context.Background())
	return nil
}

// FreeSpace of the download volume in bytes.
func (s *Service) FreeSpace(args NoArgs, free *uint64) error {
	freeSpace, err := s.library.FreeSpace()
	if err != nil {
		return err
	}

	*free = freeSpace
	return nil
}

func (s *Service) History(args NoArgs, records *[]internal.SessionRecord) error {
	res, err := s.history.List()
	if err != nil {
		return err
	}

	*records = res
	return nil
}
