// file: internal/command/command_test.go
// version: 1.0.0
// guid: 2e7c5a9d-4b1f-4d8e-a6c3-0f9b2d5e8a7c

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    CommandType
		params  map[string]string
		wantErr bool
	}{
		{
			name:   "play with identifier",
			raw:    "bookplayer://play?identifier=Author%2Fbook.mp3",
			want:   CommandPlay,
			params: map[string]string{"identifier": "Author/book.mp3"},
		},
		{
			name: "play without scheme",
			raw:  "play",
			want: CommandPlay,
		},
		{
			name:   "download with url",
			raw:    "bookplayer://download?url=https%3A%2F%2Fexample.com%2Fbook.m4b",
			want:   CommandDownload,
			params: map[string]string{"url": "https://example.com/book.m4b"},
		},
		{
			name:   "sleep with seconds",
			raw:    "bookplayer://sleep?seconds=300",
			want:   CommandSleep,
			params: map[string]string{"seconds": "300"},
		},
		{
			name:   "sleep cancel",
			raw:    "bookplayer://sleep?seconds=-1",
			want:   CommandSleep,
			params: map[string]string{"seconds": "-1"},
		},
		{
			name: "refresh",
			raw:  "bookplayer://refresh",
			want: CommandRefresh,
		},
		{
			name: "skip forward",
			raw:  "bookplayer://skipForward",
			want: CommandSkipForward,
		},
		{
			name:    "unknown command",
			raw:     "bookplayer://teleport",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "scheme only",
			raw:     "bookplayer://",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			action, err := Parse(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, action.Command)
			for key, want := range tc.params {
				assert.Equal(t, want, action.Param(key))
			}
		})
	}
}

func TestSleepSeconds(t *testing.T) {
	action, err := Parse("bookplayer://sleep?seconds=120")
	require.NoError(t, err)
	seconds, err := action.SleepSeconds()
	require.NoError(t, err)
	assert.Equal(t, 120, seconds)

	action, err = Parse("bookplayer://sleep")
	require.NoError(t, err)
	_, err = action.SleepSeconds()
	assert.Error(t, err)

	action, err = Parse("bookplayer://sleep?seconds=soon")
	require.NoError(t, err)
	_, err = action.SleepSeconds()
	assert.Error(t, err)
}
