package ytdlp

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 10 * time.Second

func (e *Executable) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, e.path, "--version").Output()
	if ctx.Err() != nil {
		return "", errors.New("requesting yt-dlp version took too long")
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}

// Update using the builtin function of yt-dlp
func (e *Executable) Update(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, e.path, "-U").CombinedOutput()
	e.log.Warn("yt-dlp update", slog.String("output", strings.TrimSpace(string(out))))
	return err
}
