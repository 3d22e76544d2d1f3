package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaFormatSize(t *testing.T) {
	testCases := []struct {
		name     string
		fileSize string
		want     float64
		ok       bool
	}{
		{name: "8 MiB", fileSize: "8388608", want: 8.0, ok: true},
		{name: "rounded", fileSize: "1500000", want: 1.43, ok: true},
		{name: "zero", fileSize: "0", want: 0, ok: true},
		{name: "empty", fileSize: ""},
		{name: "not a number", fileSize: "about 3MB"},
		{name: "float", fileSize: "1024.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MediaFormat{FileSize: tc.fileSize}.Size()
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 0.0001)
		})
	}
}

func TestMediaInfoBest(t *testing.T) {
	var nilInfo *MediaInfo
	_, ok := nilInfo.Best()
	assert.False(t, ok)

	_, ok = (&MediaInfo{}).Best()
	assert.False(t, ok)

	info := &MediaInfo{Formats: []MediaFormat{{FormatId: "137"}, {FormatId: "18"}}}
	best, ok := info.Best()
	assert.True(t, ok)
	assert.Equal(t, "137", best.FormatId)
}

func TestToMega(t *testing.T) {
	assert.Equal(t, 1.0, ToMega(1024*1024))
	assert.Equal(t, 0.0, ToMega(1000))
	assert.Equal(t, 0.01, ToMega(10000))
}
