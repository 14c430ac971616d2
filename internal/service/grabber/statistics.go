package grabber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// summarySeparator frames the run summary.
const summarySeparator = "═══════════════════════════════════════════════════════════════"

// RunStatistics holds the counters of a whole program run.
type RunStatistics struct {
	// StartTime is when the run began.
	StartTime time.Time
	// EndTime is when the run completed.
	EndTime time.Time
	// AcquisitionsSucceeded is the number of targets acquired.
	AcquisitionsSucceeded int64
	// AcquisitionsFailed is the number of targets that failed.
	AcquisitionsFailed int64
	// FilesProcessed is the number of files that went through post-processing.
	FilesProcessed int64
	// FilesSkipped is the number of finished files missing on disk.
	FilesSkipped int64
	// FilesTagged is the number of files whose tags were written.
	FilesTagged int64
	// FilesRenamed is the number of renamed files.
	FilesRenamed int64
	// CoversEmbedded is the number of embedded covers.
	CoversEmbedded int64
	// StepWarnings is the number of failed post-processing steps.
	StepWarnings int64
	// Retries is the number of retried download attempts.
	Retries int64
	// TotalBytes is the total size of the produced files.
	TotalBytes int64
	// Failures are the targets that failed, with their errors.
	Failures []AcquisitionFailure
}

// AcquisitionFailure is a target that could not be acquired.
type AcquisitionFailure struct {
	// URL is the target URL.
	URL string
	// ErrorMessage is the failure description.
	ErrorMessage string
}

// Statistics collects run statistics from the foreground callbacks.
type Statistics struct {
	// mu guards stats.
	mu sync.Mutex
	// stats are the collected counters.
	stats RunStatistics
}

// NewStatistics creates statistics for a run starting now.
func NewStatistics() *Statistics {
	return &Statistics{stats: RunStatistics{StartTime: time.Now()}}
}

// RecordFile counts a post-processed file.
func (s *Statistics) RecordFile(result *ProcessResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.IsSkipped {
		s.stats.FilesSkipped++

		return
	}

	s.stats.FilesProcessed++
	s.stats.TotalBytes += result.Size
	s.stats.StepWarnings += int64(len(result.Warnings))

	if result.IsTagged {
		s.stats.FilesTagged++
	}

	if result.IsRenamed {
		s.stats.FilesRenamed++
	}

	if result.IsCoverEmbedded {
		s.stats.CoversEmbedded++
	}
}

// RecordRetry counts a retried attempt.
func (s *Statistics) RecordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Retries++
}

// RecordAcquisition counts a finished acquisition of url, failed when err is not nil.
func (s *Statistics) RecordAcquisition(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.stats.AcquisitionsSucceeded++

		return
	}

	s.stats.AcquisitionsFailed++
	s.stats.Failures = append(s.stats.Failures, AcquisitionFailure{URL: url, ErrorMessage: err.Error()})
}

// Finish marks the end of the run.
func (s *Statistics) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.EndTime = time.Now()
}

// Snapshot returns a copy of the collected counters.
func (s *Statistics) Snapshot() RunStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Failures = append([]AcquisitionFailure(nil), s.stats.Failures...)

	return stats
}

// PrintSummary prints a formatted summary of the run.
func (s *Statistics) PrintSummary(ctx context.Context) {
	stats := s.Snapshot()

	if stats.AcquisitionsSucceeded+stats.AcquisitionsFailed == 0 {
		return
	}

	wasInterrupted := ctx.Err() != nil

	logger.Info(ctx, "")
	logger.Info(ctx, summarySeparator)

	if wasInterrupted {
		logger.Info(ctx, "           DOWNLOAD SUMMARY (Interrupted)")
	} else {
		logger.Info(ctx, "                     DOWNLOAD SUMMARY")
	}

	logger.Info(ctx, summarySeparator)
	logger.Infof(ctx, "Downloads:        %d succeeded, %d failed", stats.AcquisitionsSucceeded, stats.AcquisitionsFailed)
	logger.Infof(ctx, "Files:            %d processed", stats.FilesProcessed)

	printCounter(ctx, "  Tagged:         %d", stats.FilesTagged)
	printCounter(ctx, "  Renamed:        %d", stats.FilesRenamed)
	printCounter(ctx, "  Covers:         %d", stats.CoversEmbedded)
	printCounter(ctx, "  Missing:        %d", stats.FilesSkipped)
	printCounter(ctx, "  Step Warnings:  %d", stats.StepWarnings)
	printCounter(ctx, "Retries:          %d", stats.Retries)

	if stats.TotalBytes > 0 {
		logger.Infof(ctx, "Data Saved:       %s", humanize.Bytes(uint64(stats.TotalBytes))) //nolint:gosec // Sizes are never negative.
	}

	if !stats.EndTime.IsZero() {
		logger.Infof(ctx, "Duration:         %s", formatElapsed(stats.EndTime.Sub(stats.StartTime)))
	}

	logger.Info(ctx, summarySeparator)

	printFailures(ctx, stats.Failures)

	switch {
	case wasInterrupted:
		logger.Warn(ctx, "Download interrupted by user (CTRL+C).")
	case len(stats.Failures) > 0:
		logger.Warnf(ctx, "%d download(s) failed. See the error details above.", len(stats.Failures))
	default:
		logger.Info(ctx, "All downloads completed successfully!")
	}
}

func printCounter(ctx context.Context, format string, value int64) {
	if value > 0 {
		logger.Infof(ctx, format, value)
	}
}

func printFailures(ctx context.Context, failures []AcquisitionFailure) {
	if len(failures) == 0 {
		return
	}

	logger.Errorf(ctx, "ERRORS ENCOUNTERED: %d", len(failures))

	for i := range failures {
		logger.Errorf(ctx, "  [%d] %s", i+1, failures[i].URL)
		logger.Errorf(ctx, "      Error: %s", failures[i].ErrorMessage)
	}

	urls := utils.Map(failures, func(failure AcquisitionFailure) string {
		return failure.URL
	})

	logger.Info(ctx, "")
	logger.Info(ctx, "To retry only failed downloads, run:")
	logger.Infof(ctx, "  media-grabber %s", strings.Join(urls, " "))
	logger.Info(ctx, summarySeparator)
}

// formatElapsed formats a duration into a human-readable string.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}
