package ytdlp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataJSON = `{"title":"Clip","thumbnail":"https://i.example.com/t.jpg","description":"a clip","duration":12.7,
"formats":[
 {"format_id":"18","format_note":"360p","resolution":"640x360","filesize":8388608,"url":"https://m.example.com/18","ext":"mp4"},
 {"format_id":"22","url":"https://m.example.com/22","ext":"mp4"},
 {"format_id":"137","filesize_approx":1048576,"ext":"mp4"}
]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// fakeExecutable writes a shell script standing in for yt-dlp.
func fakeExecutable(t *testing.T, body string) *Executable {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err)

	return New(path, discardLogger())
}

func collect(t *testing.T, h Handle) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(10 * time.Second)

	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for download events")
		}
	}
}

func TestMetadata(t *testing.T) {
	e := fakeExecutable(t, "cat <<'JSON'\n"+metadataJSON+"\nJSON")

	info, err := e.Metadata(context.Background(), "https://example.com/v")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/v", info.URL)
	assert.Equal(t, "Clip", info.Title)
	assert.Equal(t, 12, info.Duration)
	require.Len(t, info.Formats, 3)

	// best first
	assert.Equal(t, "137", info.Formats[0].FormatId)
	assert.Equal(t, "1048576", info.Formats[0].FileSize)
	assert.Equal(t, "22", info.Formats[1].FormatId)
	assert.Equal(t, "", info.Formats[1].FileSize)
	assert.Equal(t, "18", info.Formats[2].FormatId)
	assert.Equal(t, "https://m.example.com/18", info.Formats[2].MediaLink)

	size, ok := info.Formats[2].Size()
	assert.True(t, ok)
	assert.Equal(t, 8.0, size)

	_, ok = info.Formats[1].Size()
	assert.False(t, ok)
}

func TestMetadataPassesURLAfterEndOfOptions(t *testing.T) {
	argv := filepath.Join(t.TempDir(), "argv")
	e := fakeExecutable(t, `for a in "$@"; do echo "$a" >> '`+argv+`'; done
echo '{"title":"x"}'`)

	_, err := e.Metadata(context.Background(), "--batch-file=/etc/passwd")
	require.NoError(t, err)

	data, err := os.ReadFile(argv)
	require.NoError(t, err)

	args := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, []string{"--", "--batch-file=/etc/passwd"}, args[len(args)-2:])
	assert.Equal(t, "-J", args[0])
}

func TestMetadataFailure(t *testing.T) {
	e := fakeExecutable(t, `echo "[generic] Extracting URL" >&2
echo "ERROR: [generic] Unsupported URL: https://example.com/nope" >&2
exit 1`)

	info, err := e.Metadata(context.Background(), "https://example.com/nope")
	require.Error(t, err)
	assert.Nil(t, info)
	assert.Equal(t, "ERROR: [generic] Unsupported URL: https://example.com/nope", err.Error())
}

func TestMetadataSingleFormatDocument(t *testing.T) {
	raw := rawMetadata{
		rawFormat: rawFormat{FormatId: "0", URL: "https://m.example.com/direct", Ext: "mp3"},
		Title:     "Direct",
	}

	info := raw.toMediaInfo("https://example.com/a.mp3")
	require.Len(t, info.Formats, 1)
	assert.Equal(t, "0", info.Formats[0].FormatId)
	assert.Equal(t, "https://m.example.com/direct", info.Formats[0].MediaLink)
}

func TestDownloadCompleted(t *testing.T) {
	e := fakeExecutable(t, `echo '[youtube] abc: Downloading webpage'
echo 'dlp-progress {"status":"downloading","downloaded_bytes":0,"total_bytes":null}'
echo 'dlp-progress {"status":"downloading","downloaded_bytes":4194304,"total_bytes":8388608}'
echo 'dlp-progress {"status":"finished","downloaded_bytes":8388608,"total_bytes":8388608}'
echo 'dlp-filepath "/downloads/Clip.mp4"'
exit 0`)

	h, err := e.Download(internal.DownloadRequest{URL: "https://example.com/v"}, "/downloads")
	require.NoError(t, err)

	events := collect(t, h)
	require.Len(t, events, 4)

	assert.Equal(t, EventProgress, events[0].Kind)
	assert.Equal(t, internal.DownloadProgress{}, events[0].Progress)

	assert.Equal(t, EventProgress, events[1].Kind)
	assert.Equal(t, internal.DownloadProgress{Downloaded: 4, Size: 8, Percent: 50}, events[1].Progress)

	assert.Equal(t, EventFilePath, events[2].Kind)
	assert.Equal(t, EventCompleted, events[3].Kind)
	assert.Equal(t, "/downloads/Clip.mp4", events[3].FilePath)

	// exited processes ignore cancellation
	assert.NoError(t, h.Cancel())
}

func TestDownloadFailed(t *testing.T) {
	e := fakeExecutable(t, `echo 'ERROR: [youtube] abc: Requested format is not available' >&2
exit 1`)

	h, err := e.Download(internal.DownloadRequest{URL: "https://example.com/v", FormatId: "999"}, "/downloads")
	require.NoError(t, err)

	events := collect(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Kind)
	assert.EqualError(t, events[0].Err, "ERROR: [youtube] abc: Requested format is not available")
}

func TestDownloadCancel(t *testing.T) {
	e := fakeExecutable(t, `echo 'dlp-progress {"status":"downloading","downloaded_bytes":1024,"total_bytes":null}'
sleep 30`)

	h, err := e.Download(internal.DownloadRequest{URL: "https://example.com/v"}, "/downloads")
	require.NoError(t, err)

	select {
	case ev := <-h.Events():
		require.Equal(t, EventProgress, ev.Kind)
	case <-time.After(10 * time.Second):
		t.Fatal("no progress received")
	}

	require.NoError(t, h.Cancel())

	events := collect(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, EventStopped, events[0].Kind)
}

func TestDownloadStartFailure(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "missing"), discardLogger())

	_, err := e.Download(internal.DownloadRequest{URL: "https://example.com/v"}, "/downloads")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	e := fakeExecutable(t, `echo "2024.08.06"`)

	v, err := e.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.08.06", v)
}
