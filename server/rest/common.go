package rest

import (
	"context"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/history"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
)

// Orchestrator is the subset of *orchestrator.Orchestrator served over HTTP.
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
	Clear()
}

type ContainerArgs struct {
	Orchestrator Orchestrator
	Cache        MediaCache
	Library      *library.Lister
	History      *history.Store
	Hub          *events.Hub
}

type infoRequest struct {
	URL string `json:"url"`
}

type sessionResponse struct {
	Id string `json:"id"`
}

type versionResponse struct {
	API   string `json:"api"`
	YtDlp string `json:"yt_dlp"`
}

type freeSpaceResponse struct {
	Bytes     uint64 `json:"bytes"`
	HumanSize string `json:"human_size"`
}

type exportResponse struct {
	Path string `json:"path"`
}
