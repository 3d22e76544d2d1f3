package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	thumbnailSize    = 120
	thumbnailTimeout = 15 * time.Second
)

type Thumbnailer interface {
	Thumbnail(ctx context.Context, path string) ([]byte, error)
}

// FFmpegThumbnailer grabs a JPEG frame one second into the video.
type FFmpegThumbnailer struct {
	path string
}

func NewFFmpegThumbnailer(path string) *FFmpegThumbnailer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegThumbnailer{path: path}
}

func (f *FFmpegThumbnailer) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", "1",
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", thumbnailSize),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %s: %w", msg, err)
		}
		return nil, err
	}

	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame")
	}

	return stdout.Bytes(), nil
}
