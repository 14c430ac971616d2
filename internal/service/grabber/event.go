package grabber

// EventKind classifies acquisition events.
type EventKind string

const (
	// EventStateChanged reports an orchestrator state transition.
	EventStateChanged EventKind = "state_changed"
	// EventMetadata reports the resolved metadata.
	EventMetadata EventKind = "metadata"
	// EventProgress reports a progress update.
	EventProgress EventKind = "progress"
	// EventFileProcessed reports a post-processed file.
	EventFileProcessed EventKind = "file_processed"
	// EventRetry reports a failed attempt that is retried.
	EventRetry EventKind = "retry"
	// EventWarning reports a degraded but continuing acquisition.
	EventWarning EventKind = "warning"
	// EventFailed reports a failed acquisition.
	EventFailed EventKind = "failed"
	// EventCompleted reports a successful acquisition.
	EventCompleted EventKind = "completed"
)

// Event is a message from the acquisition worker to the foreground.
type Event struct {
	// Kind classifies the event.
	Kind EventKind
	// RunID identifies the acquisition.
	RunID string
	// State is the orchestrator state after the event.
	State State
	// Snapshot is the progress state when the event was produced.
	Snapshot Snapshot
	// Metadata is the resolved metadata (nil before resolution).
	Metadata *Metadata
	// ItemIndex is the 0-based index of the item the event refers to.
	ItemIndex int
	// Label is the display text of progress and completion events.
	Label string
	// IsBusy indicates an indeterminate phase such as engine post-processing.
	IsBusy bool
	// Result is the post-processing result of file events.
	Result *ProcessResult
	// Attempt is the failed attempt number of retry events.
	Attempt int
	// Err is the cause of retry and failure events.
	Err error
}

// EmitFunc delivers an event. It may block until the event is consumed.
type EmitFunc func(event *Event)
