package grabber

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	mock_ytdlp "github.com/oshokin/media-grabber/internal/client/ytdlp/mocks"
	"github.com/oshokin/media-grabber/internal/config"
)

// TestFetcher_Fetch_RetriesTransientFailures tests that two transient failures stay invisible to the caller.
func TestFetcher_Fetch_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, logs := newObservedContext(t)
	target := newTestTarget(t, config.FormatMP3)

	engine := mock_ytdlp.NewMockEngine(ctrl)
	gomock.InOrder(
		engine.EXPECT().Resolve(gomock.Any(), target.URL, gomock.Any()).
			Return(nil, newRetryableError("Unable to download webpage: timed out")),
		engine.EXPECT().Resolve(gomock.Any(), target.URL, gomock.Any()).
			Return(nil, newRetryableError("HTTP Error 503: Service Unavailable")),
		engine.EXPECT().Resolve(gomock.Any(), target.URL, gomock.Any()).
			Return(&ytdlp.Info{Title: "Clip", Uploader: "Channel", Duration: 125}, nil),
	)

	metadata, err := NewFetcher(engine, NewRetryPolicy(0, 0, 0)).Fetch(ctx, target)
	require.NoError(t, err)

	assert.Equal(t, "Clip", metadata.Title)
	assert.False(t, metadata.IsPlaylist)
	assert.Equal(t, 3, logs.FilterMessageSnippet("Resolving metadata").Len())
	assert.Equal(t, 2, logs.FilterMessageSnippet("failed, retrying").Len())
}

// TestFetcher_Fetch_ResolveOptions tests that the playlist settings reach the engine unchanged on every attempt.
func TestFetcher_Fetch_ResolveOptions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	target := newTestTarget(t, config.FormatMP4)
	target.IsPlaylist = true
	target.PlaylistStart = 2
	target.PlaylistEnd = 4

	expected := &ytdlp.ResolveOptions{IsPlaylist: true, PlaylistStart: 2, PlaylistEnd: 4}

	engine := mock_ytdlp.NewMockEngine(ctrl)
	gomock.InOrder(
		engine.EXPECT().Resolve(gomock.Any(), target.URL, expected).Return(nil, newRetryableError("timed out")),
		engine.EXPECT().Resolve(gomock.Any(), target.URL, expected).Return(&ytdlp.Info{
			Type:    "playlist",
			Title:   "Mix",
			Entries: []*ytdlp.Info{{Title: "A"}, {Title: "B"}, {Title: "C"}},
		}, nil),
	)

	metadata, err := NewFetcher(engine, NewRetryPolicy(0, 0, 0)).Fetch(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 3, metadata.DeclaredLength())
}

// TestFetcher_Fetch_FatalFailure tests that permanent failures are not retried.
func TestFetcher_Fetch_FatalFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, newFatalError("Unsupported URL: https://example.com")).Times(1)

	_, err := NewFetcher(engine, NewRetryPolicy(0, 0, 0)).
		Fetch(context.Background(), newTestTarget(t, config.FormatMP3))
	require.ErrorIs(t, err, ytdlp.ErrEngineFailed)
	assert.False(t, ytdlp.IsRetryable(err))
}

// TestFetcher_Fetch_MissingEngine tests that a missing executable is fatal.
func TestFetcher_Fetch_MissingEngine(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, ytdlp.ErrEngineNotFound).Times(1)

	_, err := NewFetcher(engine, NewRetryPolicy(0, 0, 0)).
		Fetch(context.Background(), newTestTarget(t, config.FormatMP3))
	require.ErrorIs(t, err, ytdlp.ErrEngineNotFound)
}

// TestFetcher_Fetch_RetriesExhausted tests that a capped policy gives up.
func TestFetcher_Fetch_RetriesExhausted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, newRetryableError("timed out")).Times(3)

	_, err := NewFetcher(engine, NewRetryPolicy(3, 0, 0)).
		Fetch(context.Background(), newTestTarget(t, config.FormatMP3))
	require.ErrorIs(t, err, ErrRetriesExhausted)
}

// TestFetcher_Fetch_RangeMismatch tests that the resolved entries are authoritative over the requested range.
func TestFetcher_Fetch_RangeMismatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, logs := newObservedContext(t)

	target := newTestTarget(t, config.FormatMP3)
	target.IsPlaylist = true
	target.PlaylistStart = 1
	target.PlaylistEnd = 3

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).Return(&ytdlp.Info{
		Type:    "playlist",
		Title:   "Album",
		Entries: []*ytdlp.Info{{Title: "One"}, nil, {Title: "Three"}},
	}, nil)

	metadata, err := NewFetcher(engine, NewRetryPolicy(0, 0, 0)).Fetch(ctx, target)
	require.NoError(t, err)

	assert.Equal(t, 2, metadata.DeclaredLength())
	assert.Equal(t, 1, logs.FilterMessageSnippet("could not be resolved").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Requested 3 playlist entries but 2 were resolved").Len())
}
