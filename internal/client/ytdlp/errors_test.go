package ytdlp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewEngineError tests the classification of engine failures.
func TestNewEngineError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exitCode  int
		messages  []string
		retryable bool
	}{
		{
			name:      "no messages",
			exitCode:  1,
			retryable: true,
		},
		{
			name:      "usage error",
			exitCode:  2,
			messages:  []string{"no such option: --bogus"},
			retryable: false,
		},
		{
			name:      "network failure",
			exitCode:  1,
			messages:  []string{"Unable to download webpage: <urlopen error timed out>"},
			retryable: true,
		},
		{
			name:      "rate limited",
			exitCode:  1,
			messages:  []string{"unable to download video data: HTTP Error 429: Too Many Requests"},
			retryable: true,
		},
		{
			name:      "private video",
			exitCode:  1,
			messages:  []string{"[youtube] abc: Private video. Sign in if you've been granted access"},
			retryable: false,
		},
		{
			name:      "unsupported url",
			exitCode:  1,
			messages:  []string{"Unsupported URL: https://example.com/nothing"},
			retryable: false,
		},
		{
			name:     "fatal and transient mixed",
			exitCode: 1,
			messages: []string{
				"[youtube] abc: Video unavailable",
				"[youtube] def: HTTP Error 503: Service Unavailable",
			},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := newEngineError(tt.exitCode, tt.messages, "tail", nil)

			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.exitCode, err.ExitCode)
			require.ErrorIs(t, err, ErrEngineFailed)
		})
	}
}

// TestIsRetryable_Wrapped tests that classification survives wrapping.
func TestIsRetryable_Wrapped(t *testing.T) {
	t.Parallel()

	engineErr := newEngineError(1, []string{"Read timed out"}, "", nil)
	wrapped := fmt.Errorf("attempt 3: %w", engineErr)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrEngineNotFound))
}

// TestEngineError_Error tests the error message.
func TestEngineError_Error(t *testing.T) {
	t.Parallel()

	err := newEngineError(1, []string{"first", "Private video"}, "", nil)
	assert.Equal(t, "yt-dlp failed (fatal, exit code 1): Private video", err.Error())

	err = newEngineError(1, nil, "", nil)
	assert.Equal(t, "yt-dlp failed (retryable, exit code 1): yt-dlp failed", err.Error())
}
