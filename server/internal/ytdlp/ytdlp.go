// Package ytdlp drives the yt-dlp executable: metadata extraction,
// downloads with progress reporting, cancellation and self update.
package ytdlp

import (
	"log/slog"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
)

type EventKind int

const (
	EventProgress EventKind = iota
	EventFilePath
	EventCompleted
	EventFailed
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventFilePath:
		return "filepath"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Terminal reports whether no further event follows.
func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed || k == EventStopped
}

// Event emitted by a running download. Progress is set for EventProgress,
// FilePath for EventFilePath and EventCompleted, Err for EventFailed.
type Event struct {
	Kind     EventKind
	Progress internal.DownloadProgress
	FilePath string
	Err      error
}

// Handle of a started download.
//
// Events yields progress in the order yt-dlp reports it and exactly one
// terminal event, then the channel is closed. Cancel requests termination
// and returns without waiting for it.
type Handle interface {
	Events() <-chan Event
	Cancel() error
}

type Executable struct {
	path string
	log  *slog.Logger
}

func New(path string, log *slog.Logger) *Executable {
	if path == "" {
		path = "yt-dlp"
	}
	return &Executable{
		path: path,
		log:  log.With(slog.String("component", "yt-dlp")),
	}
}

func (e *Executable) Path() string { return e.path }
