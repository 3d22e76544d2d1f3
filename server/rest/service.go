package rest

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/history"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
	"github.com/spf13/afero"
)

// version of the HTTP and RPC surface, bumped on breaking changes
const CURRENT_API_VERSION = "1.0.0"

type Service struct {
	orchestrator Orchestrator
	cache        MediaCache
	library      *library.Lister
	history      *history.Store
}

func NewService(args *ContainerArgs) *Service {
	return &Service{
		orchestrator: args.Orchestrator,
		cache:        args.Cache,
		library:      args.Library,
		history:      args.History,
	}
}

// FetchInfo retrieves metadata; a successful fetch also becomes the
// cached selection.
func (s *Service) FetchInfo(ctx context.Context, url string) (*internal.MediaInfo, error) {
	return s.orchestrator.FetchMetadata(ctx, url)
}

func (s *Service) CachedInfo() *internal.MediaInfo {
	return s.cache.Restore()
}

func (s *Service) ClearInfo() {
	s.cache.Clear()
}

func (s *Service) Download(req internal.DownloadRequest) (string, error) {
	return s.orchestrator.StartDownload(req)
}

func (s *Service) DownloadBest() (string, error) {
	return s.orchestrator.DownloadBest()
}

func (s *Service) Stop() {
	s.orchestrator.Stop()
}

func (s *Service) Current() *internal.SessionSnapshot {
	return s.orchestrator.Current()
}

func (s *Service) GetVersion(ctx context.Context) (string, string, error) {
	v, err := s.orchestrator.Version(ctx)
	if err != nil {
		return CURRENT_API_VERSION, "", err
	}
	return CURRENT_API_VERSION, v, nil
}

func (s *Service) Update(ctx context.Context) error {
	return s.orchestrator.UpdateTool(ctx)
}

func (s *Service) Library(ctx context.Context) []internal.DownloadInfo {
	return s.library.List(ctx)
}

func (s *Service) DeleteLibrary() error {
	return s.library.DeleteAll()
}

func (s *Service) FreeSpace() (*freeSpaceResponse, error) {
	free, err := s.library.FreeSpace()
	if err != nil {
		return nil, err
	}
	return &freeSpaceResponse{Bytes: free, HumanSize: humanize.IBytes(free)}, nil
}

func (s *Service) Open(name string) (afero.File, os.FileInfo, error) {
	return s.library.Open(name)
}

func (s *Service) Thumbnail(ctx context.Context, name string) ([]byte, error) {
	return s.library.Thumbnail(ctx, name)
}

func (s *Service) DeleteFile(name string) error {
	return s.library.Delete(name)
}

func (s *Service) Export(name string) (string, error) {
	return s.library.MoveToPublic(name)
}

func (s *Service) History() ([]internal.SessionRecord, error) {
	return s.history.List()
}

func (s *Service) ClearHistory() error {
	return s.history.Clear()
}
