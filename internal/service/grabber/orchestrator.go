package grabber

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/logger"
)

// State is the lifecycle state of the orchestrator.
type State string

const (
	// StateIdle means no acquisition is running.
	StateIdle State = "idle"
	// StateFetching means metadata is being resolved.
	StateFetching State = "fetching"
	// StateDownloading means media is being downloaded.
	StateDownloading State = "downloading"
	// StateProcessing means a finished file is being finalized.
	StateProcessing State = "processing"
	// StateFinished means the acquisition succeeded.
	StateFinished State = "finished"
	// StateError means the acquisition failed.
	StateError State = "error"
)

const (
	// eventBufferSize is the capacity of the event channel.
	eventBufferSize = 128
	// notificationTitle is the title of completion notifications.
	notificationTitle = "Download Complete!"
)

// Orchestrator runs at most one acquisition at a time on a background worker.
type Orchestrator struct {
	// fetcher resolves metadata.
	fetcher MetadataFetcher
	// runner downloads and post-processes.
	runner *Runner
	// tracker is the progress state shared with the runner.
	tracker *Tracker
	// notifier announces completed acquisitions.
	notifier Notifier
	// mu guards state and isBusy.
	mu sync.Mutex
	// state is the lifecycle state.
	state State
	// isBusy indicates that a worker is running.
	isBusy bool
}

// NewOrchestrator creates an orchestrator owning a fresh progress tracker.
func NewOrchestrator(
	fetcher MetadataFetcher,
	engine ytdlp.Engine,
	pipeline Pipeline,
	notifier Notifier,
	retryPolicy RetryPolicy,
) *Orchestrator {
	tracker := NewTracker()

	return &Orchestrator{
		fetcher:  fetcher,
		runner:   NewRunner(engine, pipeline, tracker, retryPolicy),
		tracker:  tracker,
		notifier: notifier,
		state:    StateIdle,
	}
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Tracker returns the progress tracker.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Start validates the target and acquires it on a background worker.
// The returned channel must be drained until it is closed; Dispatch does that.
func (o *Orchestrator) Start(ctx context.Context, target *Target) (<-chan *Event, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.isBusy {
		o.mu.Unlock()

		return nil, ErrAcquisitionInProgress
	}

	o.isBusy = true
	o.mu.Unlock()

	var (
		events = make(chan *Event, eventBufferSize)
		runID  = uuid.NewString()
	)

	ctx = logger.WithKV(ctx, "run_id", runID)

	go o.work(ctx, &worker{
		orchestrator: o,
		runID:        runID,
		events:       events,
	}, target)

	return events, nil
}

// worker delivers the events of one acquisition.
type worker struct {
	// orchestrator owns the state.
	orchestrator *Orchestrator
	// runID identifies the acquisition.
	runID string
	// events receives every event.
	events chan<- *Event
	// metadata is the resolved metadata.
	metadata *Metadata
}

func (o *Orchestrator) work(ctx context.Context, w *worker, target *Target) {
	defer func() {
		o.mu.Lock()
		o.isBusy = false
		o.mu.Unlock()

		close(w.events)
	}()

	o.tracker.Reset()
	w.transition(StateFetching)

	metadata, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		w.fail(ctx, fmt.Errorf("failed to resolve '%s': %w", target.URL, err))

		return
	}

	w.metadata = metadata
	w.emit(&Event{Kind: EventMetadata})

	o.tracker.SetStatus(StatusDownloading)
	w.transition(StateDownloading)

	if err = o.runner.Run(ctx, target, metadata, w.forward); err != nil {
		w.fail(ctx, fmt.Errorf("failed to download '%s': %w", target.URL, err))

		return
	}

	o.tracker.SetStatus(StatusFinished)
	w.transition(StateFinished)

	message := completionMessage(metadata)
	if err = o.notifier.Notify(ctx, notificationTitle, message); err != nil {
		if !errors.Is(err, ErrNotifierUnavailable) {
			logger.Debugf(ctx, "Notification failed: %v", err)
		}

		logger.Infof(ctx, "%s %s", notificationTitle, message)
	}

	w.emit(&Event{Kind: EventCompleted, Label: message})

	o.tracker.Reset()
	w.transition(StateIdle)
}

func completionMessage(metadata *Metadata) string {
	if metadata.IsPlaylist {
		return fmt.Sprintf("Playlist \"%s\" has been downloaded.", metadata.Title)
	}

	return fmt.Sprintf("Video \"%s\" has been downloaded.", metadata.Title)
}

// emit completes the event with the run details and delivers it.
func (w *worker) emit(event *Event) {
	event.RunID = w.runID
	event.State = w.orchestrator.State()

	if event.Metadata == nil {
		event.Metadata = w.metadata
	}

	if event.Snapshot == (Snapshot{}) {
		event.Snapshot = w.orchestrator.tracker.Snapshot()
	}

	w.events <- event
}

// forward delivers a runner event, moving between the downloading and processing states first.
func (w *worker) forward(event *Event) {
	switch event.Snapshot.Status {
	case StatusDownloading:
		w.transition(StateDownloading)
	case StatusProcessing:
		w.transition(StateProcessing)
	case StatusIdle, StatusFinished, StatusError:
	}

	w.emit(event)
}

// transition changes the state and reports it when it differs from the current one.
func (w *worker) transition(state State) {
	o := w.orchestrator

	o.mu.Lock()
	isChanged := o.state != state
	o.state = state
	o.mu.Unlock()

	if isChanged {
		w.emit(&Event{Kind: EventStateChanged})
	}
}

func (w *worker) fail(ctx context.Context, err error) {
	logger.Errorf(ctx, "Acquisition failed: %v", err)

	w.orchestrator.tracker.SetStatus(StatusError)
	w.transition(StateError)
	w.emit(&Event{Kind: EventFailed, Err: err})

	w.orchestrator.tracker.Reset()
	w.transition(StateIdle)
}

// Callbacks receive acquisition events on the goroutine that calls Dispatch. Nil callbacks are skipped.
type Callbacks struct {
	// OnStateChange receives every state transition.
	OnStateChange func(state State)
	// OnMetadata receives the resolved metadata.
	OnMetadata func(metadata *Metadata)
	// OnProgress receives every progress update.
	OnProgress func(event *Event, metadata *Metadata, snapshot Snapshot)
	// OnFileProcessed receives every post-processed file.
	OnFileProcessed func(result *ProcessResult)
	// OnRetry receives every retried failure.
	OnRetry func(attempt int, err error)
	// OnWarning receives degradation warnings.
	OnWarning func(message string)
	// OnFailure receives the failure of the acquisition.
	OnFailure func(err error)
	// OnCompletion is called once the acquisition succeeded.
	OnCompletion func()
}

// Dispatch drains events until the channel is closed, invoking the matching callbacks.
// It returns the failure of the acquisition, if any.
func Dispatch(ctx context.Context, events <-chan *Event, callbacks *Callbacks) error {
	var failure error

	for event := range events {
		switch event.Kind {
		case EventStateChanged:
			if callbacks.OnStateChange != nil {
				callbacks.OnStateChange(event.State)
			}
		case EventMetadata:
			if callbacks.OnMetadata != nil {
				callbacks.OnMetadata(event.Metadata)
			}
		case EventProgress:
			if callbacks.OnProgress != nil {
				callbacks.OnProgress(event, event.Metadata, event.Snapshot)
			}
		case EventFileProcessed:
			if callbacks.OnFileProcessed != nil {
				callbacks.OnFileProcessed(event.Result)
			}
		case EventRetry:
			if callbacks.OnRetry != nil {
				callbacks.OnRetry(event.Attempt, event.Err)
			}
		case EventWarning:
			if callbacks.OnWarning != nil {
				callbacks.OnWarning(event.Label)
			}
		case EventFailed:
			failure = event.Err

			if callbacks.OnFailure != nil {
				callbacks.OnFailure(event.Err)
			}
		case EventCompleted:
			if callbacks.OnCompletion != nil {
				callbacks.OnCompletion()
			}
		default:
			logger.Debugf(ctx, "Ignoring event of unknown kind '%s'", event.Kind)
		}
	}

	return failure
}
