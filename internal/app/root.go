package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/oshokin/media-grabber/internal/client/artwork"
	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/grabber"
)

// ExecuteRootCommand is the entry point for the application.
// It initializes the engine and the artwork client, sets up the acquisition components
// and acquires the provided URLs sequentially.
func ExecuteRootCommand(ctx context.Context, cfg *config.Config, urls []string) {
	artworkClient, err := artwork.NewClient(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize artwork client: %v", err)
	}

	var (
		engine       = ytdlp.NewClient(cfg)
		retryPolicy  = grabber.NewRetryPolicyFromConfig(cfg)
		pipeline     = grabber.NewPipeline(grabber.NewTagStore(), artworkClient)
		fetcher      = grabber.NewFetcher(engine, retryPolicy)
		orchestrator = grabber.NewOrchestrator(fetcher, engine, pipeline, grabber.NewNotifier(cfg), retryPolicy)
		stats        = grabber.NewStatistics()
	)

	// Ensure statistics are ALWAYS printed, even on panic.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "Panic recovered: %v", r)
		}

		stats.Finish()
		stats.PrintSummary(ctx)
	}()

	flattenedURLs, err := grabber.FlattenURLs(urls)
	if err != nil {
		logger.Errorf(ctx, "Failed to read URLs: %v", err)

		return
	}

	if err = os.MkdirAll(cfg.OutputPath, constants.DefaultFolderPermissions); err != nil {
		logger.Errorf(ctx, "Failed to create output directory '%s': %v", cfg.OutputPath, err)

		return
	}

	if len(flattenedURLs) == 0 {
		logger.Warn(ctx, "No URLs to download")

		return
	}

	if !engine.HasFFmpeg() {
		logger.Warn(ctx, "ffmpeg was not found, downloads are not converted or merged")
	}

	isAnySucceeded := false

	for _, url := range flattenedURLs {
		if ctx.Err() != nil {
			break
		}

		err = acquire(ctx, orchestrator, grabber.NewTarget(cfg, url), stats)
		stats.RecordAcquisition(url, err)

		if err == nil {
			isAnySucceeded = true

			continue
		}

		if ytdlp.IsNotFound(err) {
			logger.Errorf(ctx, "yt-dlp executable '%s' was not found, install it or set ytdlp_path", cfg.YTDLPPath)

			break
		}
	}

	if isAnySucceeded && cfg.RememberOutputPath {
		rememberOutputPath(ctx, cfg)
	}
}

// acquire runs one acquisition and renders its events until the worker finishes.
func acquire(ctx context.Context, orchestrator *grabber.Orchestrator, target *grabber.Target,
	stats *grabber.Statistics,
) error {
	events, err := orchestrator.Start(ctx, target)
	if err != nil {
		return err
	}

	renderer := newProgressRenderer(ctx)
	defer renderer.close()

	err = grabber.Dispatch(ctx, events, &grabber.Callbacks{
		OnStateChange: func(state grabber.State) {
			logger.Debugf(ctx, "Acquisition state changed to %s", state)
		},
		OnMetadata:      renderer.start,
		OnProgress:      renderer.update,
		OnFileProcessed: func(result *grabber.ProcessResult) {
			stats.RecordFile(result)
			renderer.fileSaved(result)
		},
		OnRetry: func(attempt int, _ error) {
			stats.RecordRetry()
			renderer.retrying(attempt)
		},
		OnWarning: func(string) {
			renderer.clear()
		},
		OnFailure: func(error) {
			renderer.clear()
		},
		OnCompletion: renderer.finish,
	})
	if err != nil && errors.Is(err, context.Canceled) {
		logger.Warnf(ctx, "Download of '%s' was interrupted", target.URL)
	}

	return err
}

// rememberOutputPath stores the output directory as the last used one.
func rememberOutputPath(ctx context.Context, cfg *config.Config) {
	outputPath, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		outputPath = cfg.OutputPath
	}

	if outputPath == cfg.LastOutputPath {
		return
	}

	cfg.LastOutputPath = outputPath

	if err = config.SaveConfig(cfg); err != nil {
		logger.Warnf(ctx, "Failed to remember output path: %v", err)

		return
	}

	logger.Debugf(ctx, "Remembered output path '%s'", outputPath)
}
