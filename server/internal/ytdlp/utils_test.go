package ytdlp

import (
	"errors"
	"testing"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogEntry(t *testing.T) {
	testCases := []struct {
		name  string
		entry string
		ok    bool
		want  Event
	}{
		{
			name:  "known total",
			entry: `dlp-progress {"status":"downloading","downloaded_bytes":1048576,"total_bytes":3145728}`,
			ok:    true,
			want:  Event{Kind: EventProgress, Progress: internal.DownloadProgress{Downloaded: 1, Size: 3, Percent: 33.3}},
		},
		{
			name:  "estimated total",
			entry: `dlp-progress {"status":"downloading","downloaded_bytes":524288,"total_bytes":null,"total_bytes_estimate":1048576.0}`,
			ok:    true,
			want:  Event{Kind: EventProgress, Progress: internal.DownloadProgress{Downloaded: 0.5, Size: 1, Percent: 50}},
		},
		{
			name:  "unknown total",
			entry: `dlp-progress {"status":"downloading","downloaded_bytes":2097152}`,
			ok:    true,
			want:  Event{Kind: EventProgress, Progress: internal.DownloadProgress{Downloaded: 2}},
		},
		{
			name:  "finished status is ignored",
			entry: `dlp-progress {"status":"finished","downloaded_bytes":1,"total_bytes":1}`,
		},
		{
			name:  "file path",
			entry: `dlp-filepath "/downloads/a b.mp4"`,
			ok:    true,
			want:  Event{Kind: EventFilePath, FilePath: "/downloads/a b.mp4"},
		},
		{
			name:  "plain output",
			entry: `[download] Destination: a.mp4`,
		},
		{
			name:  "broken json",
			entry: `dlp-progress {"status":`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLogEntry([]byte(tc.entry))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDownloadParams(t *testing.T) {
	params := downloadParams(internal.DownloadRequest{
		URL:      "https://www.youtube.com/watch?v=abc?list=PL1",
		FormatId: "22",
		Title:    "my/clip: 100%",
	}, "/data/downloads/")

	assert.Equal(t, []string{"-f", "22", "--", "https://www.youtube.com/watch?v=abc"}, params[len(params)-4:])
	assert.Contains(t, params, "--no-playlist")
	assert.Contains(t, params, "/data/downloads/my_clip_ 100%%.%(ext)s")

	params = downloadParams(internal.DownloadRequest{URL: "https://example.com/v"}, "/d")
	assert.NotContains(t, params, "-f")
	assert.Contains(t, params, "/d/%(title)s.%(ext)s")
}

func TestDownloadParamsEndOptionsBeforeURL(t *testing.T) {
	params := downloadParams(internal.DownloadRequest{URL: "--use-postprocessor=Exec:exec_cmd=id"}, "/d")

	require.GreaterOrEqual(t, len(params), 2)
	assert.Equal(t, "--", params[len(params)-2])
	assert.Equal(t, "--use-postprocessor=Exec:exec_cmd=id", params[len(params)-1])
	assert.NotEqual(t, "--use-postprocessor=Exec:exec_cmd=id", params[0])
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeTitle("a/b\\c"))
	assert.Equal(t, "", sanitizeTitle(" .. "))
	assert.Equal(t, "x__y", sanitizeTitle("x\n\ty"))
}

func TestErrorFromStderr(t *testing.T) {
	fallback := errors.New("exit status 1")

	err := errorFromStderr([]byte("WARNING: slow\nERROR: boom\nmore\n"), fallback)
	assert.EqualError(t, err, "ERROR: boom")

	err = errorFromStderr([]byte("first\nsecond\n\n"), fallback)
	assert.EqualError(t, err, "second")

	err = errorFromStderr(nil, fallback)
	assert.Equal(t, fallback, err)
}
