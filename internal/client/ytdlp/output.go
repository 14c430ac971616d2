package ytdlp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
)

const (
	// progressLinePrefix marks lines rendered from the progress template.
	progressLinePrefix = "mgprogress|"
	// fileLinePrefix marks lines printed once a file is finalized.
	fileLinePrefix = "mgfile|"
	// errorLinePrefix marks engine error lines.
	errorLinePrefix = "ERROR:"
	// warningLinePrefix marks engine warning lines.
	warningLinePrefix = "WARNING:"
	// notAvailable is what the engine renders for missing template fields.
	notAvailable = "NA"

	// progressTemplate renders status, formatted percentage and autonumber on a single line.
	progressTemplate = "download:" + progressLinePrefix +
		"%(progress.status)s|%(progress._percent_str)s|%(info.playlist_autonumber)s"

	// fileTemplate prints the finalized file metadata as compact JSON.
	fileTemplate = "after_move:" + fileLinePrefix +
		"%(.{id,title,uploader,duration,thumbnail,categories,artists,artist,album,ext,filepath," +
		"webpage_url,playlist_autonumber,playlist_index})j"
)

// lineKind classifies a line of engine output.
type lineKind int

const (
	lineKindOther lineKind = iota
	lineKindProgress
	lineKindFile
	lineKindError
	lineKindWarning
)

// parsedLine is a classified line of engine output.
type parsedLine struct {
	// kind is the classification.
	kind lineKind
	// progress is set for progress lines.
	progress *ProgressEvent
	// info is set for file lines.
	info *Info
	// text is the message for error, warning and other lines.
	text string
}

// parseLine classifies a single line of engine output.
func parseLine(line string) (*parsedLine, error) {
	switch {
	case strings.HasPrefix(line, progressLinePrefix):
		return &parsedLine{kind: lineKindProgress, progress: parseProgressLine(line)}, nil
	case strings.HasPrefix(line, fileLinePrefix):
		var info Info
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, fileLinePrefix)), &info); err != nil {
			return nil, err
		}

		return &parsedLine{kind: lineKindFile, info: &info}, nil
	case strings.HasPrefix(line, errorLinePrefix):
		return &parsedLine{kind: lineKindError, text: strings.TrimSpace(strings.TrimPrefix(line, errorLinePrefix))}, nil
	case strings.HasPrefix(line, warningLinePrefix):
		return &parsedLine{kind: lineKindWarning, text: strings.TrimSpace(strings.TrimPrefix(line, warningLinePrefix))}, nil
	default:
		return &parsedLine{kind: lineKindOther, text: line}, nil
	}
}

func parseProgressLine(line string) *ProgressEvent {
	fields := strings.SplitN(strings.TrimPrefix(line, progressLinePrefix), "|", 3)
	for len(fields) < 3 {
		fields = append(fields, "")
	}

	event := &ProgressEvent{
		Status:        ProgressStatus(strings.TrimSpace(fields[0])),
		PercentString: fields[1],
	}

	if autonumber := strings.TrimSpace(fields[2]); autonumber != "" && autonumber != notAvailable {
		if value, err := strconv.Atoi(autonumber); err == nil && value > 0 {
			event.PlaylistAutonumber = value
		}
	}

	return event
}

// lineWriter splits written bytes into lines and hands each complete line to a handler.
// Carriage returns are treated as line breaks.
type lineWriter struct {
	// mu serializes writes.
	mu sync.Mutex
	// pending holds an incomplete trailing line.
	pending []byte
	// handle receives every complete line.
	handle func(line string)
}

func newLineWriter(handle func(line string)) *lineWriter {
	return &lineWriter{handle: handle}
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)

	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}

		line := string(w.pending[:idx])
		w.pending = w.pending[idx+1:]

		if strings.TrimSpace(line) != "" {
			w.handle(line)
		}
	}

	return len(p), nil
}

// Flush hands any incomplete trailing line to the handler.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if line := string(w.pending); strings.TrimSpace(line) != "" {
		w.handle(line)
	}

	w.pending = nil
}
