package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

// Static error definitions for better error handling.
var (
	// ErrEngineNotFound indicates that the yt-dlp executable cannot be started.
	ErrEngineNotFound = errors.New("yt-dlp executable not found")
	// ErrEngineFailed indicates that yt-dlp exited with a failure status.
	ErrEngineFailed = errors.New("yt-dlp failed")
	// ErrMalformedOutput indicates that yt-dlp produced output that cannot be decoded.
	ErrMalformedOutput = errors.New("malformed yt-dlp output")
)

// usageErrorExitCode is the status yt-dlp uses for invalid command-line options.
const usageErrorExitCode = 2

// fatalErrorMarkers are lowercase fragments of engine errors that will not go away on retry.
//
//nolint:gochecknoglobals // This is an immutable lookup table.
var fatalErrorMarkers = []string{
	"unsupported url",
	"is not a valid url",
	"video unavailable",
	"private video",
	"has been removed",
	"account associated with this video has been terminated",
	"sign in to confirm your age",
	"members-only",
	"join this channel",
	"not available in your country",
	"blocked it in your country",
	"http error 404",
	"http error 410",
	"no video formats found",
	"requested format is not available",
	"premieres in",
	"live event will begin",
	"does not exist",
}

// EngineError describes a failed yt-dlp invocation.
type EngineError struct {
	// Err is the underlying cause.
	Err error
	// Messages are the ERROR lines reported by the engine.
	Messages []string
	// OutputTail is the last part of the engine output.
	OutputTail string
	// ExitCode is the process exit status.
	ExitCode int
	// Retryable reports whether repeating the same invocation may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}

	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s (%s, exit code %d): %v", ErrEngineFailed, kind, e.ExitCode, e.Err)
	}

	return fmt.Sprintf("%s (%s, exit code %d): %s", ErrEngineFailed, kind, e.ExitCode, e.Messages[len(e.Messages)-1])
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient engine failure.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Retryable
	}

	return false
}

// IsFatalMessage reports whether an engine error message describes a permanent failure.
func IsFatalMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range fatalErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}

// newEngineError classifies a failed invocation from its exit code and ERROR lines.
// A failure is retryable unless it is a usage error or every reported message is permanent.
func newEngineError(exitCode int, messages []string, tail string, cause error) *EngineError {
	retryable := exitCode != usageErrorExitCode
	if retryable && len(messages) > 0 {
		retryable = false

		for _, message := range messages {
			if !IsFatalMessage(message) {
				retryable = true

				break
			}
		}
	}

	if cause == nil {
		cause = ErrEngineFailed
	}

	return &EngineError{
		Err:        cause,
		Messages:   messages,
		OutputTail: tail,
		ExitCode:   exitCode,
		Retryable:  retryable,
	}
}
