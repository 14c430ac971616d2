package grabber

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

// Runner downloads resolved targets through the engine and post-processes every finished file.
type Runner struct {
	// engine is the extraction engine.
	engine ytdlp.Engine
	// pipeline finalizes finished files.
	pipeline Pipeline
	// tracker holds the progress state and the resume cursor.
	tracker *Tracker
	// retryPolicy governs retries of transient failures.
	retryPolicy RetryPolicy
}

const (
	// maxVideoBitrate is the highest accepted video bitrate in kbps.
	maxVideoBitrate = 12000
	// outputNameTemplate renders files as "{title}.{extension}".
	outputNameTemplate = "%(title)s.%(ext)s"
	// audioFallbackFormat is selected when audio cannot be converted.
	audioFallbackFormat = "bestaudio"
	// audioFormat is selected when audio is converted after download.
	audioFormat = "bestaudio/best"
)

// NewRunner creates a runner reporting progress into tracker.
func NewRunner(engine ytdlp.Engine, pipeline Pipeline, tracker *Tracker, retryPolicy RetryPolicy) *Runner {
	return &Runner{
		engine:      engine,
		pipeline:    pipeline,
		tracker:     tracker,
		retryPolicy: retryPolicy,
	}
}

// Run downloads the target, retrying transient failures.
// A retried playlist resumes at the first entry that has not finished downloading.
func (r *Runner) Run(ctx context.Context, target *Target, metadata *Metadata, emit EmitFunc) error {
	baseOptions, warning := buildFormatOptions(target, r.engine.HasFFmpeg())
	if warning != "" {
		logger.Warn(ctx, warning)

		emit(&Event{
			Kind:     EventWarning,
			Snapshot: r.tracker.Snapshot(),
			Metadata: metadata,
			Label:    warning,
		})
	}

	rangeLength := metadata.RangeLength()

	return withRetries(ctx, r.retryPolicy, "download",
		func(ctx context.Context, attempt int) error {
			offset := 0

			if metadata.IsPlaylist {
				offset = r.tracker.CurrentItemIndex()
				if offset >= rangeLength {
					logger.Infof(ctx, "All %d entries of playlist '%s' are downloaded", rangeLength, metadata.Title)

					return nil
				}
			}

			run := &attemptRun{
				runner:   r,
				ctx:      ctx,
				target:   target,
				metadata: metadata,
				offset:   offset,
				emit:     emit,
			}

			// A resumed item is already the tracker's current item, so its label is not set by the first event.
			run.label = run.downloadingLabel(offset)

			opts := *baseOptions
			opts.OnProgress = run.handleProgress
			opts.OnFileComplete = run.handleFile

			if metadata.IsPlaylist {
				opts.PlaylistStart = target.PlaylistStart + offset
			}

			logger.Infof(ctx, "Downloading '%s' (attempt %d)", target.URL, attempt)

			return r.engine.Download(ctx, target.URL, &opts)
		},
		func(attempt int, err error) {
			emit(&Event{
				Kind:     EventRetry,
				Snapshot: r.tracker.Snapshot(),
				Metadata: metadata,
				Attempt:  attempt,
				Err:      err,
			})
		})
}

// buildFormatOptions selects formats and conversions, degrading when ffmpeg is missing.
func buildFormatOptions(target *Target, hasFFmpeg bool) (*ytdlp.DownloadOptions, string) {
	opts := &ytdlp.DownloadOptions{
		OutputTemplate: filepath.Join(target.OutputDir, outputNameTemplate),
		IsPlaylist:     target.IsPlaylist,
		PlaylistStart:  target.PlaylistStart,
		PlaylistEnd:    target.PlaylistEnd,
		RateLimit:      target.RateLimit,
	}

	if target.IsAudio() {
		if !hasFFmpeg {
			opts.FormatSelector = audioFallbackFormat

			return opts, "ffmpeg was not found, audio is saved in its original format without conversion"
		}

		opts.FormatSelector = audioFormat
		opts.AudioFormat = target.Format
		opts.EmbedMetadata = true

		if target.Format == config.FormatMP3 {
			opts.AudioQuality = fmt.Sprintf("%dK", target.AudioBitrate)
		}

		return opts, ""
	}

	if !hasFFmpeg {
		opts.FormatSelector = fmt.Sprintf("best[height<=%d][vbr<=%d][ext=mp4]/best",
			target.VideoQuality, maxVideoBitrate)

		return opts, "ffmpeg was not found, streams cannot be merged so a single-file format is downloaded"
	}

	opts.FormatSelector = fmt.Sprintf(
		"bestvideo[height<=%d][vbr<=%d][ext=mp4]+bestaudio[ext=m4a]/best[vbr<=%d][ext=mp4]/best",
		target.VideoQuality, maxVideoBitrate, maxVideoBitrate)
	opts.RecodeVideo = config.FormatMP4

	return opts, ""
}

// attemptRun maps the engine events of one download attempt onto the tracker.
type attemptRun struct {
	// runner owns the tracker and the pipeline.
	runner *Runner
	// ctx is the attempt context.
	ctx context.Context //nolint:containedctx // Engine callbacks carry no context of their own.
	// target is the acquisition target.
	target *Target
	// metadata is the resolved metadata.
	metadata *Metadata
	// offset is the range position this attempt starts at.
	offset int
	// emit delivers events.
	emit EmitFunc
	// label is the display text of the current phase.
	label string
}

// itemIndex converts an engine autonumber into a 0-based index over the whole range.
func (a *attemptRun) itemIndex(autonumber int) int {
	if autonumber <= 0 {
		return a.offset
	}

	return a.offset + autonumber - 1
}

func (a *attemptRun) handleProgress(event *ytdlp.ProgressEvent) {
	var (
		tracker = a.runner.tracker
		index   = a.itemIndex(event.PlaylistAutonumber)
	)

	switch event.Status {
	case ytdlp.ProgressStatusDownloading:
		percentage := ParsePercent(event.PercentString)

		tracker.SetStatus(StatusDownloading)
		tracker.SetCurrentPercentage(percentage)

		// Merged formats report several streams per item, only the first one starts a new item.
		if index != tracker.PreviousItemIndex() && index >= tracker.CurrentItemIndex() {
			tracker.UpdateCurrentItem(index)

			a.label = a.downloadingLabel(index)
		}

		if a.metadata.IsPlaylist {
			declaredLength := a.metadata.DeclaredLength()

			tracker.SetTotalPercentage(TotalPercentage(a.metadata.CompletedBefore(index)-1, declaredLength) +
				percentage/float64(max(declaredLength, 1)))
		} else {
			tracker.SetTotalPercentage(percentage)
		}

		a.emitProgress(index, false)
	case ytdlp.ProgressStatusFinished:
		tracker.SetStatus(StatusProcessing)
		tracker.SetCurrentPercentage(100)

		if a.metadata.IsPlaylist {
			tracker.SetTotalPercentage(TotalPercentage(a.metadata.CompletedBefore(index), a.metadata.DeclaredLength()))
		} else {
			tracker.SetTotalPercentage(100)
		}

		if index+1 > tracker.CurrentItemIndex() {
			tracker.UpdateCurrentItem(index + 1)
		}

		a.label = fmt.Sprintf("Finished downloading \"%s\"", a.metadata.ItemLabel(index))

		a.emitProgress(index, true)
	case ytdlp.ProgressStatusError:
		logger.Warnf(a.ctx, "Engine reported a failed stream for \"%s\"", a.metadata.ItemLabel(index))
	}
}

func (a *attemptRun) downloadingLabel(index int) string {
	if !a.metadata.IsPlaylist {
		return fmt.Sprintf("Downloading \"%s\"", a.metadata.Title)
	}

	return fmt.Sprintf("Downloading video %d of %d from the playlist \"%s\"",
		a.metadata.CompletedBefore(index)+1, a.metadata.DeclaredLength(), a.metadata.Title)
}

func (a *attemptRun) emitProgress(index int, isBusy bool) {
	a.emit(&Event{
		Kind:      EventProgress,
		Snapshot:  a.runner.tracker.Snapshot(),
		Metadata:  a.metadata,
		ItemIndex: index,
		Label:     a.label,
		IsBusy:    isBusy,
	})
}

func (a *attemptRun) handleFile(info *ytdlp.Info) {
	index := a.itemIndex(info.PlaylistAutonumber)
	file := newCompletedFile(info, a.metadata.ItemAt(index), a.target)

	a.runner.tracker.SetStatus(StatusProcessing)

	result := a.runner.pipeline.Process(a.ctx, file)

	a.emit(&Event{
		Kind:      EventFileProcessed,
		Snapshot:  a.runner.tracker.Snapshot(),
		Metadata:  a.metadata,
		ItemIndex: index,
		Label:     fmt.Sprintf("Saved \"%s\"", filepath.Base(result.Path)),
		Result:    result,
	})
}

// newCompletedFile merges the engine-reported file info with the resolved item.
func newCompletedFile(info *ytdlp.Info, item *Item, target *Target) *CompletedFile {
	reported := NewItem(info)
	if item == nil {
		item = reported
	}

	file := &CompletedFile{
		Path:      strings.TrimSpace(info.Filepath),
		OutputDir: target.OutputDir,
		Extension: strings.TrimSpace(info.Extension),
		Title:     reported.Title,
		Artist:    reported.Artist(),
		Album:     reported.Album,
		Thumbnail: reported.Thumbnail,
		IsAudio:   target.IsAudio(),
	}

	if strings.TrimSpace(info.Title) == "" {
		file.Title = item.Title
	}

	if file.Artist == "" {
		file.Artist = item.Artist()
	}

	if file.Album == "" {
		file.Album = item.Album
	}

	if file.Thumbnail == "" {
		file.Thumbnail = item.Thumbnail
	}

	if file.Extension == "" {
		file.Extension = target.Format
	}

	if reported.IsMusic() || item.IsMusic() {
		file.Genre = musicCategory
	}

	return file
}
