package grabber

import "sync"

// Status is the progress status of an acquisition.
type Status string

const (
	// StatusIdle means nothing is being acquired.
	StatusIdle Status = "idle"
	// StatusDownloading means media bytes are being received.
	StatusDownloading Status = "downloading"
	// StatusProcessing means a stream finished and the file is being finalized.
	StatusProcessing Status = "processing"
	// StatusFinished means the acquisition completed.
	StatusFinished Status = "finished"
	// StatusError means the acquisition failed.
	StatusError Status = "error"
)

// Snapshot is a consistent copy of the progress state.
type Snapshot struct {
	// CurrentItemIndex is the 0-based index of the item being acquired.
	CurrentItemIndex int
	// PreviousItemIndex is the index held before the last item change (-1 initially).
	PreviousItemIndex int
	// CurrentPercentage is the progress of the current item (0-100).
	CurrentPercentage float64
	// TotalPercentage is the progress of the whole acquisition (0-100).
	TotalPercentage float64
	// Status is the progress status.
	Status Status
}

// Tracker owns the progress state of one acquisition.
// It is written only by the acquisition worker and safe for concurrent reads.
type Tracker struct {
	// mu guards state.
	mu sync.RWMutex
	// state is the progress state.
	state Snapshot
}

// NewTracker creates a tracker in its initial state.
func NewTracker() *Tracker {
	return &Tracker{state: initialSnapshot()}
}

func initialSnapshot() Snapshot {
	return Snapshot{
		CurrentItemIndex:  0,
		PreviousItemIndex: -1,
		CurrentPercentage: 0,
		TotalPercentage:   0,
		Status:            StatusIdle,
	}
}

// UpdateCurrentItem moves the cursor to index, remembering the previous one.
func (t *Tracker) UpdateCurrentItem(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.PreviousItemIndex = t.state.CurrentItemIndex
	t.state.CurrentItemIndex = index
}

// Reset restores the initial state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = initialSnapshot()
}

// Snapshot returns a copy of the whole state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state
}

// CurrentItemIndex returns the index of the item being acquired.
func (t *Tracker) CurrentItemIndex() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.CurrentItemIndex
}

// PreviousItemIndex returns the index held before the last item change.
func (t *Tracker) PreviousItemIndex() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.PreviousItemIndex
}

// CurrentPercentage returns the progress of the current item.
func (t *Tracker) CurrentPercentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.CurrentPercentage
}

// TotalPercentage returns the progress of the whole acquisition.
func (t *Tracker) TotalPercentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.TotalPercentage
}

// Status returns the progress status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.Status
}

// SetStatus sets the progress status.
func (t *Tracker) SetStatus(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Status = status
}

// SetCurrentPercentage sets the progress of the current item, clamped to 0-100.
func (t *Tracker) SetCurrentPercentage(percentage float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.CurrentPercentage = clampPercentage(percentage)
}

// SetTotalPercentage sets the progress of the whole acquisition, clamped to 0-100.
func (t *Tracker) SetTotalPercentage(percentage float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.TotalPercentage = clampPercentage(percentage)
}
