package ytdlp

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

// Engine defines the extraction capability used by the application.
type Engine interface {
	// Resolve fetches metadata without downloading media bytes.
	Resolve(ctx context.Context, url string, opts *ResolveOptions) (*Info, error)
	// Download acquires the media at url, reporting progress and finished files through opts callbacks.
	Download(ctx context.Context, url string, opts *DownloadOptions) error
	// HasFFmpeg reports whether the transcoding tool is available.
	HasFFmpeg() bool
}

// ClientImpl runs the yt-dlp executable.
type ClientImpl struct {
	// binaryPath is the yt-dlp executable.
	binaryPath string
	// ffmpegLocation is the configured ffmpeg path (empty means lookup in PATH).
	ffmpegLocation string
	// ffmpegOnce guards the ffmpeg lookup.
	ffmpegOnce sync.Once
	// hasFFmpeg caches the ffmpeg lookup result.
	hasFFmpeg bool
	// waitDelay bounds the wait for output once the engine is killed (0 means the default).
	waitDelay time.Duration
}

// ffmpegBinary is the executable name of the transcoding tool.
const ffmpegBinary = "ffmpeg"

// NewClient creates a new engine backed by the yt-dlp executable.
func NewClient(cfg *config.Config) Engine {
	return &ClientImpl{
		binaryPath:     cfg.YTDLPPath,
		ffmpegLocation: cfg.FFmpegLocation,
	}
}

// Resolve runs yt-dlp in simulate mode and decodes the single JSON document it prints.
// Per-entry failures are tolerated: a decodable document is accepted even when yt-dlp exits with an error.
func (c *ClientImpl) Resolve(ctx context.Context, url string, opts *ResolveOptions) (*Info, error) {
	var (
		stdout bytes.Buffer
		stderr = newTailBuffer(outputTailSize)
	)

	result, err := runProcess(ctx, &processSpec{
		bin:       c.binaryPath,
		args:      buildResolveArgs(url, opts),
		stdout:    &stdout,
		stderr:    stderr,
		waitDelay: c.waitDelay,
	})
	if err != nil {
		return nil, err
	}

	var (
		messages = collectErrorMessages(stderr.String())
		document = bytes.TrimSpace(stdout.Bytes())
	)

	if len(document) == 0 {
		if result.exitCode == 0 {
			return nil, fmt.Errorf("%w: empty metadata document", ErrMalformedOutput)
		}

		return nil, newEngineError(result.exitCode, messages, stderr.String(), result.err)
	}

	var info Info
	if err = json.Unmarshal(document, &info); err != nil {
		if result.exitCode != 0 {
			return nil, newEngineError(result.exitCode, messages, stderr.String(), result.err)
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	if result.exitCode != 0 {
		logger.Warnf(ctx, "yt-dlp reported errors while resolving '%s', keeping the resolvable part: %v", url, messages)
	}

	return &info, nil
}

// Download runs yt-dlp and translates its output into callbacks.
// Standard output and standard error share a single pipe so progress and file lines keep their order.
// Callbacks run on the output reader, so a slow callback holds back the engine but never loses its output.
func (c *ClientImpl) Download(ctx context.Context, url string, opts *DownloadOptions) error {
	var (
		tail     = newTailBuffer(outputTailSize)
		messages []string
	)

	lines := newLineWriter(func(line string) {
		_, _ = tail.Write([]byte(line + "\n"))

		parsed, err := parseLine(line)
		if err != nil {
			logger.Warnf(ctx, "Failed to decode yt-dlp file line: %v", err)

			return
		}

		switch parsed.kind {
		case lineKindProgress:
			if opts.OnProgress != nil {
				opts.OnProgress(parsed.progress)
			}
		case lineKindFile:
			if opts.OnFileComplete != nil {
				opts.OnFileComplete(parsed.info)
			}
		case lineKindError:
			messages = append(messages, parsed.text)

			logger.Debugf(ctx, "yt-dlp error: %s", parsed.text)
		case lineKindWarning:
			logger.Debugf(ctx, "yt-dlp warning: %s", parsed.text)
		case lineKindOther:
			logger.Debugf(ctx, "yt-dlp: %s", parsed.text)
		}
	})

	result, err := runProcess(ctx, &processSpec{
		bin:       c.binaryPath,
		args:      c.buildDownloadArgs(url, opts),
		stdout:    lines,
		waitDelay: c.waitDelay,
	})

	lines.Flush()

	if err != nil {
		return err
	}

	if result.exitCode == 0 {
		logger.Debugf(ctx, "yt-dlp finished '%s' in %s", url, result.duration)

		return nil
	}

	engineErr := newEngineError(result.exitCode, messages, tail.String(), result.err)

	// With per-entry error tolerance, permanent entry failures leave the rest of the playlist intact.
	if opts.IsPlaylist && !engineErr.Retryable && len(messages) > 0 && result.exitCode != usageErrorExitCode {
		for _, message := range messages {
			logger.Warnf(ctx, "Skipped unavailable playlist entry: %s", message)
		}

		return nil
	}

	return engineErr
}

// HasFFmpeg reports whether ffmpeg can be executed.
func (c *ClientImpl) HasFFmpeg() bool {
	c.ffmpegOnce.Do(func() {
		c.hasFFmpeg = lookupFFmpeg(c.ffmpegLocation)
	})

	return c.hasFFmpeg
}

func lookupFFmpeg(location string) bool {
	if location == "" {
		_, err := exec.LookPath(ffmpegBinary)

		return err == nil
	}

	stat, err := os.Stat(location)
	if err != nil {
		_, err = exec.LookPath(location)

		return err == nil
	}

	if stat.IsDir() {
		stat, err = os.Stat(filepath.Join(location, ffmpegBinary))

		return err == nil && !stat.IsDir()
	}

	return true
}

func buildResolveArgs(url string, opts *ResolveOptions) []string {
	args := []string{
		"--dump-single-json",
		"--simulate",
		"--ignore-errors",
		"--no-warnings",
		"--no-progress",
	}

	args = append(args, buildPlaylistArgs(opts.IsPlaylist, opts.PlaylistStart, opts.PlaylistEnd)...)

	return append(args, "--", url)
}

func (c *ClientImpl) buildDownloadArgs(url string, opts *DownloadOptions) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-simulate",
		"--no-color",
		"--progress-template", progressTemplate,
		"--print", fileTemplate,
		"--output", opts.OutputTemplate,
	}

	if opts.FormatSelector != "" {
		args = append(args, "--format", opts.FormatSelector)
	}

	if opts.AudioFormat != "" {
		args = append(args, "--extract-audio", "--audio-format", opts.AudioFormat)

		if opts.AudioQuality != "" {
			args = append(args, "--audio-quality", opts.AudioQuality)
		}
	}

	if opts.RecodeVideo != "" {
		args = append(args, "--recode-video", opts.RecodeVideo)
	}

	if opts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}

	if c.ffmpegLocation != "" {
		args = append(args, "--ffmpeg-location", c.ffmpegLocation)
	}

	if opts.RateLimit > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(opts.RateLimit, 10))
	}

	if opts.IsPlaylist {
		args = append(args, "--ignore-errors")
	}

	args = append(args, buildPlaylistArgs(opts.IsPlaylist, opts.PlaylistStart, opts.PlaylistEnd)...)

	return append(args, "--", url)
}

func buildPlaylistArgs(isPlaylist bool, start, end int) []string {
	if !isPlaylist {
		return []string{"--no-playlist"}
	}

	args := []string{"--yes-playlist"}

	if start <= 1 && end <= 0 {
		return args
	}

	start = max(start, 1)

	items := strconv.Itoa(start) + ":"
	if end > 0 {
		items += strconv.Itoa(end)
	}

	return append(args, "--playlist-items", items)
}

// collectErrorMessages extracts ERROR lines from raw engine output.
func collectErrorMessages(output string) []string {
	var messages []string

	lines := newLineWriter(func(line string) {
		parsed, err := parseLine(line)
		if err == nil && parsed.kind == lineKindError {
			messages = append(messages, parsed.text)
		}
	})

	_, _ = lines.Write([]byte(output))
	lines.Flush()

	return messages
}

// IsNotFound reports whether err means the engine executable is unavailable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEngineNotFound)
}
