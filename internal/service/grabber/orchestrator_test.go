package grabber

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	mock_ytdlp "github.com/oshokin/media-grabber/internal/client/ytdlp/mocks"
	"github.com/oshokin/media-grabber/internal/config"
)

// fakeFetcher returns fixed metadata, optionally waiting for a release first.
type fakeFetcher struct {
	metadata *Metadata
	err      error
	release  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ *Target) (*Metadata, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return f.metadata, f.err
}

// collectEvents drains the channel.
func collectEvents(events <-chan *Event) []*Event {
	var result []*Event

	for event := range events {
		result = append(result, event)
	}

	return result
}

// kindsAndStates flattens events into readable "kind:state" entries.
func kindsAndStates(events []*Event) []string {
	result := make([]string, 0, len(events))

	for _, event := range events {
		result = append(result, string(event.Kind)+":"+string(event.State))
	}

	return result
}

// TestOrchestrator_Start_SingleItem tests the event sequence of a successful acquisition.
func TestOrchestrator_Start_SingleItem(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		target   = newTestTarget(t, config.FormatMP4)
		notifier = &fakeNotifier{}
		fetcher  = &fakeFetcher{metadata: &Metadata{Title: "Clip", Item: &Item{Title: "Clip"}}}
	)

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().HasFFmpeg().Return(true)
	engine.EXPECT().Download(gomock.Any(), target.URL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts *ytdlp.DownloadOptions) error {
			opts.OnProgress(downloading(" 50.0%", 0))
			opts.OnProgress(finished(0))
			opts.OnFileComplete(&ytdlp.Info{Title: "Clip", Extension: "mp4"})

			return nil
		})

	orchestrator := NewOrchestrator(fetcher, engine, &fakePipeline{}, notifier, NewRetryPolicy(0, 0, 0))

	events, err := orchestrator.Start(context.Background(), target)
	require.NoError(t, err)

	received := collectEvents(events)

	assert.Equal(t, []string{
		"state_changed:fetching",
		"metadata:fetching",
		"state_changed:downloading",
		"progress:downloading",
		"state_changed:processing",
		"progress:processing",
		"file_processed:processing",
		"state_changed:finished",
		"completed:finished",
		"state_changed:idle",
	}, kindsAndStates(received))

	runID := received[0].RunID
	require.NotEmpty(t, runID)

	for _, event := range received {
		assert.Equal(t, runID, event.RunID)
	}

	assert.Equal(t, `Video "Clip" has been downloaded.`, received[8].Label)
	assert.Equal(t, []string{`Download Complete! Video "Clip" has been downloaded.`}, notifier.sent())

	assert.Equal(t, StateIdle, orchestrator.State())
	assert.Equal(t, initialSnapshot(), orchestrator.Tracker().Snapshot())
}

// TestOrchestrator_Start_Busy tests that a second acquisition is rejected while one is running.
func TestOrchestrator_Start_Busy(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := &fakeFetcher{
		err:     newFatalError("Unsupported URL"),
		release: make(chan struct{}),
	}

	orchestrator := NewOrchestrator(fetcher, mock_ytdlp.NewMockEngine(ctrl), &fakePipeline{},
		&fakeNotifier{}, NewRetryPolicy(0, 0, 0))

	events, err := orchestrator.Start(context.Background(), newTestTarget(t, config.FormatMP3))
	require.NoError(t, err)

	_, err = orchestrator.Start(context.Background(), newTestTarget(t, config.FormatMP3))
	require.ErrorIs(t, err, ErrAcquisitionInProgress)

	close(fetcher.release)
	collectEvents(events)

	// The worker is released once its channel is closed.
	fetcher.release = nil

	events, err = orchestrator.Start(context.Background(), newTestTarget(t, config.FormatMP3))
	require.NoError(t, err)
	collectEvents(events)
}

// TestOrchestrator_Start_InvalidTarget tests that invalid targets fail before a worker starts.
func TestOrchestrator_Start_InvalidTarget(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orchestrator := NewOrchestrator(&fakeFetcher{}, mock_ytdlp.NewMockEngine(ctrl), &fakePipeline{},
		&fakeNotifier{}, NewRetryPolicy(0, 0, 0))

	target := newTestTarget(t, config.FormatMP3)
	target.URL = " "

	_, err := orchestrator.Start(context.Background(), target)
	require.ErrorIs(t, err, ErrEmptyURL)
	assert.Equal(t, StateIdle, orchestrator.State())
}

// TestOrchestrator_Start_Failure tests that a failed resolution reports the error and returns to idle.
func TestOrchestrator_Start_Failure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		notifier = &fakeNotifier{}
		fetcher  = &fakeFetcher{err: newFatalError("Unsupported URL: https://media.example.com")}
	)

	orchestrator := NewOrchestrator(fetcher, mock_ytdlp.NewMockEngine(ctrl), &fakePipeline{},
		notifier, NewRetryPolicy(0, 0, 0))

	events, err := orchestrator.Start(context.Background(), newTestTarget(t, config.FormatMP3))
	require.NoError(t, err)

	var states []State

	err = Dispatch(context.Background(), events, &Callbacks{
		OnStateChange: func(state State) {
			states = append(states, state)
		},
	})
	require.ErrorIs(t, err, ytdlp.ErrEngineFailed)

	assert.Equal(t, []State{StateFetching, StateError, StateIdle}, states)
	assert.Empty(t, notifier.sent())
	assert.Equal(t, StateIdle, orchestrator.State())
}

// TestOrchestrator_Start_PlaylistRange tests totals over a range whose entries partly failed to resolve.
func TestOrchestrator_Start_PlaylistRange(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	target := newTestTarget(t, config.FormatMP3)
	target.IsPlaylist = true
	target.PlaylistStart = 2
	target.PlaylistEnd = 3

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().Resolve(gomock.Any(), target.URL, gomock.Any()).Return(&ytdlp.Info{
		Type:    "playlist",
		Title:   "Album",
		Entries: []*ytdlp.Info{{Title: "Second"}, nil, {Title: "Third"}},
	}, nil)
	engine.EXPECT().HasFFmpeg().Return(true)
	engine.EXPECT().Download(gomock.Any(), target.URL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts *ytdlp.DownloadOptions) error {
			assert.Equal(t, 2, opts.PlaylistStart)
			assert.Equal(t, 3, opts.PlaylistEnd)

			// The unresolvable entry keeps its autonumber.
			opts.OnProgress(downloading(" 50.0%", 1))
			opts.OnProgress(finished(1))
			opts.OnProgress(downloading(" 50.0%", 3))
			opts.OnProgress(finished(3))

			return nil
		})

	var (
		notifier     = &fakeNotifier{}
		fetcher      = NewFetcher(engine, NewRetryPolicy(0, 0, 0))
		orchestrator = NewOrchestrator(fetcher, engine, &fakePipeline{}, notifier, NewRetryPolicy(0, 0, 0))
	)

	events, err := orchestrator.Start(context.Background(), target)
	require.NoError(t, err)

	var (
		totals     []float64
		isComplete bool
		resolved   *Metadata
	)

	err = Dispatch(context.Background(), events, &Callbacks{
		OnMetadata: func(metadata *Metadata) {
			resolved = metadata
		},
		OnProgress: func(_ *Event, _ *Metadata, snapshot Snapshot) {
			totals = append(totals, snapshot.TotalPercentage)
		},
		OnCompletion: func() {
			isComplete = true
		},
	})
	require.NoError(t, err)
	require.True(t, isComplete)

	require.NotNil(t, resolved)
	assert.Equal(t, 2, resolved.DeclaredLength())

	require.Len(t, totals, 4)
	assert.InDelta(t, 25, totals[0], 0.001)
	assert.InDelta(t, 50, totals[1], 0.001)
	assert.InDelta(t, 75, totals[2], 0.001)
	assert.InDelta(t, 100, totals[3], 0.001)

	assert.Equal(t, []string{`Download Complete! Playlist "Album" has been downloaded.`}, notifier.sent())
}

// TestOrchestrator_Start_NotifierUnavailable tests that the completion message is logged when notifications fail.
func TestOrchestrator_Start_NotifierUnavailable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, logs := newObservedContext(t)

	engine := mock_ytdlp.NewMockEngine(ctrl)
	engine.EXPECT().HasFFmpeg().Return(true)
	engine.EXPECT().Download(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	var (
		notifier     = &fakeNotifier{err: ErrNotifierUnavailable}
		fetcher      = &fakeFetcher{metadata: &Metadata{Title: "Clip", Item: &Item{Title: "Clip"}}}
		orchestrator = NewOrchestrator(fetcher, engine, &fakePipeline{}, notifier, NewRetryPolicy(0, 0, 0))
	)

	events, err := orchestrator.Start(ctx, newTestTarget(t, config.FormatMP3))
	require.NoError(t, err)
	require.NoError(t, Dispatch(ctx, events, &Callbacks{}))

	entries := logs.FilterMessage(`Download Complete! Video "Clip" has been downloaded.`).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "run_id", entries[0].Context[0].Key)
}

// TestDispatch tests that every event kind reaches its callback.
func TestDispatch(t *testing.T) {
	t.Parallel()

	var (
		metadata = newPlaylistMetadata("Mix", "One")
		result   = &ProcessResult{Path: "/music/One.mp3"}
		retryErr = errors.New("timed out")
		failErr  = errors.New("gave up")
		events   = make(chan *Event, 16)
		calls    []string
	)

	events <- &Event{Kind: EventStateChanged, State: StateFetching}
	events <- &Event{Kind: EventMetadata, Metadata: metadata}
	events <- &Event{Kind: EventProgress, Metadata: metadata, Snapshot: Snapshot{TotalPercentage: 40}}
	events <- &Event{Kind: EventFileProcessed, Result: result}
	events <- &Event{Kind: EventRetry, Attempt: 2, Err: retryErr}
	events <- &Event{Kind: EventWarning, Label: "ffmpeg was not found"}
	events <- &Event{Kind: EventKind("unknown")}
	events <- &Event{Kind: EventFailed, Err: failErr}
	events <- &Event{Kind: EventCompleted}
	close(events)

	err := Dispatch(context.Background(), events, &Callbacks{
		OnStateChange: func(state State) {
			calls = append(calls, "state "+string(state))
		},
		OnMetadata: func(received *Metadata) {
			assert.Same(t, metadata, received)

			calls = append(calls, "metadata")
		},
		OnProgress: func(_ *Event, received *Metadata, snapshot Snapshot) {
			assert.Same(t, metadata, received)
			assert.InDelta(t, 40, snapshot.TotalPercentage, 0.001)

			calls = append(calls, "progress")
		},
		OnFileProcessed: func(received *ProcessResult) {
			assert.Same(t, result, received)

			calls = append(calls, "file")
		},
		OnRetry: func(attempt int, err error) {
			assert.Equal(t, 2, attempt)
			assert.Equal(t, retryErr, err)

			calls = append(calls, "retry")
		},
		OnWarning: func(message string) {
			calls = append(calls, "warning "+message)
		},
		OnFailure: func(err error) {
			calls = append(calls, "failure "+err.Error())
		},
		OnCompletion: func() {
			calls = append(calls, "completion")
		},
	})
	require.ErrorIs(t, err, failErr)

	assert.Equal(t, []string{
		"state fetching",
		"metadata",
		"progress",
		"file",
		"retry",
		"warning ffmpeg was not found",
		"failure gave up",
		"completion",
	}, calls)
}

// TestDispatch_NilCallbacks tests that missing callbacks are skipped.
func TestDispatch_NilCallbacks(t *testing.T) {
	t.Parallel()

	events := make(chan *Event, 2)
	events <- &Event{Kind: EventProgress}
	events <- &Event{Kind: EventCompleted}
	close(events)

	require.NoError(t, Dispatch(context.Background(), events, &Callbacks{}))
}
