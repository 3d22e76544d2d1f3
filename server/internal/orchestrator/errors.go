package orchestrator

import (
	"errors"
)

var (
	ErrEmptyURL          = errors.New("url must not be empty")
	ErrInvalidURL        = errors.New("url must be an absolute http or https url")
	ErrAlreadyInProgress = errors.New("a download is already in progress")
	ErrNoMedia           = errors.New("no media info available")
)

// FetchError is returned when metadata could not be retrieved.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// DownloadError is returned when a download could not be launched.
// Failures of an already running download are only reported on the
// error stream.
type DownloadError struct {
	URL      string
	FormatId string
	Err      error
}

func (e *DownloadError) Error() string { return e.Err.Error() }
func (e *DownloadError) Unwrap() error { return e.Err }
