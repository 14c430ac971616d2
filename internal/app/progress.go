package app

import (
	"context"
	"io"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/grabber"
)

const (
	// progressBarWidth is the width of the bar in characters.
	progressBarWidth = 30
	// progressBarThrottle limits how often the bar is redrawn.
	progressBarThrottle = 100 * time.Millisecond
	// spinnerType is the progressbar spinner style drawn while the engine is busy.
	spinnerType = 14
	// indeterminateMax makes progressbar draw a spinner instead of a bar.
	indeterminateMax = -1
)

// progressRenderer draws the progress of one acquisition on the terminal.
// It is only used from the goroutine running Dispatch.
type progressRenderer struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Callbacks carry no context of their own.
	// bar is the current bar (nil when nothing is drawn).
	bar *progressbar.ProgressBar
	// writer receives the rendered bar.
	writer io.Writer
	// isBusy indicates whether the current bar is a spinner.
	isBusy bool
	// isEnabled indicates whether the bar is drawn at the current log level.
	isEnabled bool
	// isPlaylist indicates whether the bar shows the whole playlist.
	isPlaylist bool
	// label is the current bar description.
	label string
}

func newProgressRenderer(ctx context.Context) *progressRenderer {
	return &progressRenderer{
		ctx:       ctx,
		writer:    os.Stderr,
		isEnabled: logger.Level() <= zap.InfoLevel,
	}
}

func (r *progressRenderer) start(metadata *grabber.Metadata) {
	r.clear()

	r.isPlaylist = metadata.IsPlaylist

	if metadata.IsPlaylist {
		logger.Infof(r.ctx, "Downloading playlist '%s' (%d entries)", metadata.Title, metadata.DeclaredLength())

		return
	}

	logger.Infof(r.ctx, "Downloading '%s' by %s (%s)",
		metadata.Title, metadata.Item.DisplayUploader(), metadata.Item.FormattedDuration())
}

func (r *progressRenderer) update(event *grabber.Event, _ *grabber.Metadata, snapshot grabber.Snapshot) {
	if !r.isEnabled {
		return
	}

	// Busy phases have no percentage, so they swap the bar for a spinner and back.
	if r.bar == nil || r.isBusy != event.IsBusy {
		r.clear()

		r.bar = newProgressBar(r.writer, event.IsBusy)
		r.isBusy = event.IsBusy
	}

	if event.Label != r.label {
		r.bar.Describe(event.Label)
		r.label = event.Label
	}

	if r.isBusy {
		_ = r.bar.Add(1)

		return
	}

	percentage := snapshot.CurrentPercentage
	if r.isPlaylist {
		percentage = snapshot.TotalPercentage
	}

	_ = r.bar.Set(int(math.Round(percentage)))
}

func (r *progressRenderer) fileSaved(result *grabber.ProcessResult) {
	r.clear()

	if result.IsSkipped {
		return
	}

	logger.Infof(r.ctx, "Saved '%s' (%s)", result.Path, humanize.Bytes(uint64(max(result.Size, 0))))
}

func (r *progressRenderer) retrying(attempt int) {
	r.clear()

	logger.Infof(r.ctx, "Retrying after failed attempt %d", attempt)
}

func (r *progressRenderer) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}

	r.bar = nil
	r.label = ""
	r.isBusy = false
}

func (r *progressRenderer) clear() {
	if r.bar != nil {
		_ = r.bar.Clear()
	}

	r.bar = nil
	r.label = ""
	r.isBusy = false
}

func (r *progressRenderer) close() {
	r.clear()
}

func newProgressBar(writer io.Writer, isBusy bool) *progressbar.ProgressBar {
	if isBusy {
		return progressbar.NewOptions(indeterminateMax,
			progressbar.OptionSetWriter(writer),
			progressbar.OptionSpinnerType(spinnerType),
			progressbar.OptionThrottle(progressBarThrottle),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}

	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetWidth(progressBarWidth),
		progressbar.OptionThrottle(progressBarThrottle),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}
