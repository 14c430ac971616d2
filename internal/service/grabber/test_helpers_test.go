package grabber

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

// tagWrite is a saved tag edit recorded by fakeTagStore.
type tagWrite struct {
	path  string
	tags  map[TagKey]string
	cover []byte
}

// fakeTagStore records tag edits instead of writing them.
type fakeTagStore struct {
	mu      sync.Mutex
	writes  []tagWrite
	openErr error
	saveErr error
}

func (s *fakeTagStore) Open(path string) (TagHandle, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}

	return &fakeTagHandle{store: s, path: path, tags: make(map[TagKey]string)}, nil
}

func (s *fakeTagStore) savedWrites() []tagWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]tagWrite(nil), s.writes...)
}

// fakeTagHandle is the handle of fakeTagStore.
type fakeTagHandle struct {
	store *fakeTagStore
	path  string
	tags  map[TagKey]string
	cover []byte
}

func (h *fakeTagHandle) SetTag(key TagKey, value string) {
	h.tags[key] = value
}

func (h *fakeTagHandle) SetCoverArt(jpeg []byte) {
	h.cover = jpeg
}

func (h *fakeTagHandle) Save() error {
	if h.store.saveErr != nil {
		return h.store.saveErr
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	h.store.writes = append(h.store.writes, tagWrite{path: h.path, tags: h.tags, cover: h.cover})

	return nil
}

func (h *fakeTagHandle) Close() error {
	return nil
}

// fakePipeline records the files it receives and reports them as processed.
type fakePipeline struct {
	mu    sync.Mutex
	files []*CompletedFile
}

func (p *fakePipeline) Process(_ context.Context, file *CompletedFile) *ProcessResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.files = append(p.files, file)

	return &ProcessResult{
		Path:   file.ExpectedPath(),
		Artist: file.Artist,
		Title:  file.Title,
		Size:   1024,
	}
}

func (p *fakePipeline) processed() []*CompletedFile {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*CompletedFile(nil), p.files...)
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, title+" "+message)

	return n.err
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.messages...)
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *eventRecorder) emit(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *eventRecorder) ofKind(kind EventKind) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*Event

	for _, event := range r.events {
		if event.Kind == kind {
			result = append(result, event)
		}
	}

	return result
}

// newObservedContext returns a context whose logger records every entry.
func newObservedContext(t *testing.T) (context.Context, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)

	return logger.ToContext(context.Background(), zap.New(core).Sugar()), logs
}

// newRetryableError creates a transient engine failure.
func newRetryableError(message string) error {
	return &ytdlp.EngineError{
		Err:       ytdlp.ErrEngineFailed,
		Messages:  []string{message},
		ExitCode:  1,
		Retryable: true,
	}
}

// newFatalError creates a permanent engine failure.
func newFatalError(message string) error {
	return &ytdlp.EngineError{
		Err:      ytdlp.ErrEngineFailed,
		Messages: []string{message},
		ExitCode: 1,
	}
}

// newTestTarget creates a valid target writing into a temporary directory.
func newTestTarget(t *testing.T, format string) *Target {
	t.Helper()

	return &Target{
		URL:           "https://media.example.com/watch?v=abc",
		OutputDir:     t.TempDir(),
		Format:        format,
		AudioBitrate:  config.DefaultAudioBitrate,
		VideoQuality:  config.DefaultVideoQuality,
		PlaylistStart: 1,
	}
}

// newPlaylistMetadata creates playlist metadata with one entry per title.
func newPlaylistMetadata(title string, entryTitles ...string) *Metadata {
	metadata := &Metadata{Title: title, IsPlaylist: true}

	for _, entryTitle := range entryTitles {
		metadata.Entries = append(metadata.Entries, &Item{Title: entryTitle, Uploader: "Uploader"})
	}

	return metadata
}

// writeTestFile creates a file with the given content.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// downloading creates a downloading progress event.
func downloading(percent string, autonumber int) *ytdlp.ProgressEvent {
	return &ytdlp.ProgressEvent{
		Status:             ytdlp.ProgressStatusDownloading,
		PercentString:      percent,
		PlaylistAutonumber: autonumber,
	}
}

// finished creates a finished progress event.
func finished(autonumber int) *ytdlp.ProgressEvent {
	return &ytdlp.ProgressEvent{
		Status:             ytdlp.ProgressStatusFinished,
		PercentString:      "100.0%",
		PlaylistAutonumber: autonumber,
	}
}
