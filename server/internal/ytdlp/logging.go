package ytdlp

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
)

const (
	progressPrefix = "dlp-progress "
	filePathPrefix = "dlp-filepath "
)

// yt-dlp fills these with the whole progress dict / final path as JSON.
const (
	downloadTemplate    = "download:" + progressPrefix + "%(progress)j"
	postprocessTemplate = "postprocess:" + filePathPrefix + "%(info.filepath)j"
)

type progressTemplate struct {
	Status             string   `json:"status"`
	DownloadedBytes    *float64 `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
}

func (p progressTemplate) toProgress() internal.DownloadProgress {
	var downloaded, total int64

	if p.DownloadedBytes != nil {
		downloaded = int64(*p.DownloadedBytes)
	}

	switch {
	case p.TotalBytes != nil:
		total = int64(*p.TotalBytes)
	case p.TotalBytesEstimate != nil:
		total = int64(*p.TotalBytesEstimate)
	}

	var percent float64
	if total > 0 {
		percent = math.Round(float64(downloaded)/float64(total)*1000) / 10
	}

	return internal.DownloadProgress{
		Downloaded: internal.ToMega(downloaded),
		Size:       internal.ToMega(total),
		Percent:    percent,
	}
}

// parseLogEntry turns one stdout line into an event. Lines that are not
// produced by the progress templates are ignored.
func parseLogEntry(entry []byte) (Event, bool) {
	entry = bytes.TrimSpace(entry)

	switch {
	case bytes.HasPrefix(entry, []byte(progressPrefix)):
		var p progressTemplate
		if err := json.Unmarshal(entry[len(progressPrefix):], &p); err != nil {
			return Event{}, false
		}
		if p.Status != "" && p.Status != "downloading" {
			return Event{}, false
		}
		return Event{Kind: EventProgress, Progress: p.toProgress()}, true

	case bytes.HasPrefix(entry, []byte(filePathPrefix)):
		var path string
		if err := json.Unmarshal(entry[len(filePathPrefix):], &path); err != nil || path == "" {
			return Event{}, false
		}
		return Event{Kind: EventFilePath, FilePath: path}, true
	}

	return Event{}, false
}
