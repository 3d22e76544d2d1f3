package ytdlp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

var unsafeTitleChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// sanitizeTitle makes a user supplied title usable as an output template
// file name.
func sanitizeTitle(title string) string {
	title = unsafeTitleChars.ReplaceAllString(title, "_")
	title = strings.Trim(strings.TrimSpace(title), ".")
	// % starts a template field
	return strings.ReplaceAll(title, "%", "%%")
}

func outputTemplate(dir, title string) string {
	name := "%(title)s"
	if t := sanitizeTitle(title); t != "" {
		name = t
	}
	return strings.TrimRight(dir, "/") + "/" + name + ".%(ext)s"
}

// errorFromStderr picks the most meaningful line yt-dlp printed.
func errorFromStderr(stderr []byte, fallback error) error {
	var last string

	for _, line := range bytes.Split(stderr, []byte("\n")) {
		l := strings.TrimSpace(string(line))
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "ERROR:") {
			return errors.New(l)
		}
		last = l
	}

	if last != "" {
		return errors.New(last)
	}
	if fallback != nil {
		return fallback
	}
	return errors.New("yt-dlp failed")
}

// tail keeps the last lines of a stream for error reporting.
type tail struct {
	lines []string
	max   int
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[1:]
	}
}

func (t *tail) bytes() []byte {
	return []byte(strings.Join(t.lines, "\n"))
}

func collectErrors(r io.Reader, t *tail, log *slog.Logger) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()
		t.add(line)
		log.Error("yt-dlp process error", slog.String("err", line))
	}
}
