package internal

import (
	"math"
	"strconv"
	"time"
)

// Details about a video/audio resource extracted by yt-dlp.
// Formats are ordered best first.
type MediaInfo struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	Duration    int           `json:"duration"`
	Formats     []MediaFormat `json:"formats"`
}

// Best returns the first format, which is the best quality by convention.
func (m *MediaInfo) Best() (MediaFormat, bool) {
	if m == nil || len(m.Formats) == 0 {
		return MediaFormat{}, false
	}
	return m.Formats[0], true
}

type MediaFormat struct {
	FormatId   string `json:"format_id"`
	FormatNote string `json:"format_note"`
	Resolution string `json:"resolution"`
	FileSize   string `json:"file_size"`
	MediaLink  string `json:"media_link"`
	Ext        string `json:"ext"`
}

// Size in megabytes. Reports false when FileSize is not an integer.
func (f MediaFormat) Size() (float64, bool) {
	n, err := strconv.ParseInt(f.FileSize, 10, 64)
	if err != nil {
		return 0, false
	}
	return ToMega(n), true
}

// ToMega converts bytes to megabytes rounded to two decimals.
func ToMega(bytes int64) float64 {
	return math.Round(float64(bytes)/1024/1024*100) / 100
}

// Progress snapshot of the running download.
// A nil *DownloadProgress means no data has been reported yet.
type DownloadProgress struct {
	Downloaded float64 `json:"downloaded"` // MB
	Size       float64 `json:"size"`       // MB, 0 when unknown
	Percent    float64 `json:"percent"`    // 0-100
}

type DownloadRequest struct {
	URL      string `json:"url"`
	FormatId string `json:"format_id"` // empty lets yt-dlp pick
	Title    string `json:"title"`
}

// A media file already present in the download directory.
type DownloadInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Ext       string    `json:"ext"`
	Bytes     int64     `json:"bytes"`
	Size      float64   `json:"size"`
	HumanSize string    `json:"human_size"`
	ModTime   time.Time `json:"mod_time"`
	Thumbnail []byte    `json:"thumbnail,omitempty"`
}

type SessionStatus string

const (
	StatusDownloading SessionStatus = "downloading"
	StatusCompleted   SessionStatus = "completed"
	StatusFailed      SessionStatus = "failed"
	StatusStopped     SessionStatus = "stopped"
)

// Snapshot of the active download session.
type SessionSnapshot struct {
	Id        string            `json:"id"`
	Request   DownloadRequest   `json:"request"`
	Status    SessionStatus     `json:"status"`
	Stopping  bool              `json:"stopping"`
	Progress  *DownloadProgress `json:"progress"`
	StartedAt time.Time         `json:"started_at"`
}

// Outcome of a finished session, kept in the history store.
type SessionRecord struct {
	Id         string        `json:"id"`
	URL        string        `json:"url"`
	FormatId   string        `json:"format_id"`
	Title      string        `json:"title"`
	Status     SessionStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	FilePath   string        `json:"file_path,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
