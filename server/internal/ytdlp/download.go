package ytdlp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"golang.org/x/sys/unix"
)

func downloadParams(req internal.DownloadRequest, dir string) []string {
	params := []string{
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--no-warnings",
		"--progress-template",
		downloadTemplate,
		"--progress-template",
		postprocessTemplate,
		"--no-exec",
		"-o",
		outputTemplate(dir, req.Title),
	}

	if req.FormatId != "" {
		params = append(params, "-f", req.FormatId)
	}

	// the url must never be parsed as an option
	return append(params, "--", strings.Split(req.URL, "?list")[0])
}

// Download starts yt-dlp in its own process group and returns immediately.
// The process outlives the caller; use the returned Handle to follow or
// cancel it.
func (e *Executable) Download(req internal.DownloadRequest, dir string) (Handle, error) {
	params := downloadParams(req, dir)

	e.log.Info("requesting download", slog.String("url", req.URL), slog.Any("params", params))

	cmd := exec.Command(e.path, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get a stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get a stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start yt-dlp process: %w", err)
	}

	p := &process{
		cmd:    cmd,
		events: make(chan Event, 16),
		log:    e.log.With(slog.String("url", req.URL), slog.Int("pid", cmd.Process.Pid)),
	}

	go p.run(stdout, stderr)

	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	events chan Event
	log    *slog.Logger

	mu        sync.Mutex
	cancelled bool
	exited    atomic.Bool
}

func (p *process) Events() <-chan Event { return p.events }

// Cancel sends SIGTERM to the whole process group: yt-dlp spawns
// children (ffmpeg and friends) that must go down with it.
func (p *process) Cancel() error {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()

	if p.exited.Load() {
		return nil
	}

	pgid, err := unix.Getpgid(p.cmd.Process.Pid)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}

	return nil
}

func (p *process) wasCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func (p *process) run(stdout, stderr io.Reader) {
	defer close(p.events)

	stderrTail := tail{max: 16}
	stderrDone := make(chan struct{})

	go func() {
		defer close(stderrDone)
		collectErrors(stderr, &stderrTail, p.log)
	}()

	var filePath string

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		ev, ok := parseLogEntry(scanner.Bytes())
		if !ok {
			continue
		}
		if ev.Kind == EventFilePath {
			filePath = ev.FilePath
		}
		p.events <- ev
	}

	// pipes must be drained before Wait
	io.Copy(io.Discard, stdout)
	<-stderrDone

	err := p.cmd.Wait()
	p.exited.Store(true)

	switch {
	case err == nil:
		p.log.Info("download completed", slog.String("path", filePath))
		p.events <- Event{Kind: EventCompleted, FilePath: filePath}
	case p.wasCancelled():
		p.log.Info("download stopped")
		p.events <- Event{Kind: EventStopped}
	default:
		p.events <- Event{Kind: EventFailed, Err: errorFromStderr(stderrTail.bytes(), err)}
	}
}
