package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"syscall"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"golang.org/x/sys/unix"
)

type rawFormat struct {
	FormatId       string   `json:"format_id"`
	FormatNote     string   `json:"format_note"`
	Resolution     string   `json:"resolution"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
	URL            string   `json:"url"`
	Ext            string   `json:"ext"`
}

type rawMetadata struct {
	rawFormat

	Title       string      `json:"title"`
	Thumbnail   string      `json:"thumbnail"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Formats     []rawFormat `json:"formats"`
}

// Metadata runs `yt-dlp -J` and converts the resulting document.
func (e *Executable) Metadata(ctx context.Context, url string) (*internal.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, e.path, "-J", "--no-playlist", "--no-warnings", "--", url)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Info("retrieving metadata", slog.String("url", url))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errorFromStderr(stderr.Bytes(), err)
	}

	var raw rawMetadata
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return raw.toMediaInfo(url), nil
}

func (r *rawMetadata) toMediaInfo(url string) *internal.MediaInfo {
	raw := r.Formats
	if len(raw) == 0 {
		raw = []rawFormat{r.rawFormat}
	}

	formats := make([]internal.MediaFormat, 0, len(raw))
	for _, f := range raw {
		formats = append(formats, f.toMediaFormat())
	}
	// yt-dlp sorts formats worst to best
	slices.Reverse(formats)

	return &internal.MediaInfo{
		URL:         url,
		Title:       r.Title,
		Thumbnail:   r.Thumbnail,
		Description: r.Description,
		Duration:    int(r.Duration),
		Formats:     formats,
	}
}

func (f rawFormat) toMediaFormat() internal.MediaFormat {
	size := ""
	switch {
	case f.FileSize != nil:
		size = strconv.FormatInt(int64(*f.FileSize), 10)
	case f.FileSizeApprox != nil:
		size = strconv.FormatInt(int64(*f.FileSizeApprox), 10)
	}

	return internal.MediaFormat{
		FormatId:   f.FormatId,
		FormatNote: f.FormatNote,
		Resolution: f.Resolution,
		FileSize:   size,
		MediaLink:  f.URL,
		Ext:        f.Ext,
	}
}
