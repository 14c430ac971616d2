package grabber

import (
	"context"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/logger"
)

// MetadataFetcher resolves the metadata of a target without downloading media.
type MetadataFetcher interface {
	// Fetch resolves the target, retrying transient failures according to the retry policy.
	Fetch(ctx context.Context, target *Target) (*Metadata, error)
}

// FetcherImpl resolves metadata through the extraction engine.
type FetcherImpl struct {
	// engine is the extraction engine.
	engine ytdlp.Engine
	// retryPolicy governs retries of transient failures.
	retryPolicy RetryPolicy
}

// NewFetcher creates a metadata fetcher.
func NewFetcher(engine ytdlp.Engine, retryPolicy RetryPolicy) MetadataFetcher {
	return &FetcherImpl{
		engine:      engine,
		retryPolicy: retryPolicy,
	}
}

// Fetch resolves the target, retrying transient failures with identical parameters.
func (f *FetcherImpl) Fetch(ctx context.Context, target *Target) (*Metadata, error) {
	var (
		info *ytdlp.Info
		opts = &ytdlp.ResolveOptions{
			IsPlaylist:    target.IsPlaylist,
			PlaylistStart: target.PlaylistStart,
			PlaylistEnd:   target.PlaylistEnd,
		}
	)

	err := withRetries(ctx, f.retryPolicy, "resolve metadata",
		func(ctx context.Context, attempt int) error {
			logger.Infof(ctx, "Resolving metadata for '%s' (attempt %d)", target.URL, attempt)

			var err error

			info, err = f.engine.Resolve(ctx, target.URL, opts)

			return err
		}, nil)
	if err != nil {
		return nil, err
	}

	metadata := NewMetadata(info)

	if !metadata.IsPlaylist {
		logger.Infof(ctx, "Resolved '%s' by %s (%s)",
			metadata.Title, metadata.Item.DisplayUploader(), metadata.Item.FormattedDuration())

		return metadata, nil
	}

	logger.Infof(ctx, "Resolved playlist '%s' with %d entries", metadata.Title, metadata.DeclaredLength())

	if dropped := len(info.Entries) - metadata.DeclaredLength(); dropped > 0 {
		logger.Warnf(ctx, "%d playlist entries could not be resolved and will be skipped", dropped)
	}

	if requested := target.RequestedRangeSize(); requested > 0 && requested != metadata.DeclaredLength() {
		logger.Warnf(ctx, "Requested %d playlist entries but %d were resolved, progress is based on the resolved entries",
			requested, metadata.DeclaredLength())
	}

	return metadata, nil
}
