package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	// outputTailSize is the amount of trailing engine output kept for diagnostics.
	outputTailSize = 16 * 1024
	// defaultWaitDelay bounds how long output pipes stay open once the engine is killed.
	defaultWaitDelay = 5 * time.Second
	// unknownExitCode marks an engine that ended without a usable exit status.
	unknownExitCode = -1
)

// processSpec describes a single engine invocation.
type processSpec struct {
	// bin is the executable to run.
	bin string
	// args are the command-line arguments.
	args []string
	// stdout receives the standard output stream.
	stdout io.Writer
	// stderr receives the standard error stream; nil shares the stdout pipe.
	stderr io.Writer
	// waitDelay bounds the wait for output after the engine is killed (0 means the default).
	waitDelay time.Duration
}

// processResult describes a finished engine invocation.
type processResult struct {
	// exitCode is the process exit status.
	exitCode int
	// duration is the wall-clock time of the invocation.
	duration time.Duration
	// err is the error returned by the process, nil on success.
	err error
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	// mu guards buf.
	mu sync.Mutex
	// buf holds the retained bytes.
	buf []byte
	// max is the retention limit.
	max int
}

func newTailBuffer(maxSize int) *tailBuffer {
	return &tailBuffer{
		buf: make([]byte, 0, maxSize),
		max: maxSize,
	}
}

// Write implements io.Writer.
func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)

		return len(p), nil
	}

	if overflow := len(t.buf) + len(p) - t.max; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}

	t.buf = append(t.buf, p...)

	return len(p), nil
}

// String returns the retained bytes.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.buf)
}

// runProcess starts the engine, copies its output until both streams are drained and waits for it to exit.
// Output is read before Wait so slow consumers never race the wait delay.
// The returned error is reserved for failures to start the process at all.
func runProcess(ctx context.Context, params *processSpec) (*processResult, error) {
	startTime := time.Now()

	//nolint:gosec // The executable comes from the user's own configuration.
	cmd := exec.CommandContext(ctx, params.bin, params.args...)
	cmd.WaitDelay = params.waitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	pipes, err := attachOutputPipes(cmd, params)
	if err != nil {
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		pipes.closeAll()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if isStartFailure(err) {
			return nil, errors.Join(ErrEngineNotFound, err)
		}

		return nil, fmt.Errorf("failed to start '%s': %w", params.bin, err)
	}

	pipes.closeWriters()

	// Descendants of a killed engine may keep the pipes open, so readers are released after the wait delay.
	stopRelease := context.AfterFunc(ctx, func() {
		time.AfterFunc(cmd.WaitDelay, pipes.closeReaders)
	})

	pipes.drain()
	stopRelease()

	err = cmd.Wait()
	pipes.closeReaders()

	result := &processResult{
		duration: time.Since(startTime),
		err:      err,
	}

	if err == nil || (errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success()) {
		result.err = nil

		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.exitCode = exitErr.ExitCode()

		return result, nil
	}

	result.exitCode = unknownExitCode
	if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() > 0 {
		result.exitCode = cmd.ProcessState.ExitCode()
	}

	return result, nil
}

// isStartFailure reports whether err means the executable is missing or cannot be executed.
func isStartFailure(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// outputPipe forwards one OS pipe into a writer.
type outputPipe struct {
	// reader is the parent end of the pipe.
	reader *os.File
	// writer is the child end of the pipe.
	writer *os.File
	// dst receives everything read from the pipe.
	dst io.Writer
}

// outputPipes are the output pipes of one invocation.
type outputPipes struct {
	// pipes are the attached pipes, one per distinct destination.
	pipes []*outputPipe
	// closeOnce guards the release of the readers.
	closeOnce sync.Once
}

// attachOutputPipes connects the standard streams of cmd to pipes owned by the caller.
// A nil stderr shares the stdout pipe so both streams keep their relative order.
func attachOutputPipes(cmd *exec.Cmd, params *processSpec) (*outputPipes, error) {
	result := &outputPipes{}

	stdout, err := newOutputPipe(params.stdout)
	if err != nil {
		return nil, err
	}

	result.pipes = append(result.pipes, stdout)
	cmd.Stdout = stdout.writer
	cmd.Stderr = stdout.writer

	if params.stderr != nil {
		stderr, err := newOutputPipe(params.stderr)
		if err != nil {
			result.closeAll()

			return nil, err
		}

		result.pipes = append(result.pipes, stderr)
		cmd.Stderr = stderr.writer
	}

	return result, nil
}

func newOutputPipe(dst io.Writer) (*outputPipe, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	if dst == nil {
		dst = io.Discard
	}

	return &outputPipe{
		reader: reader,
		writer: writer,
		dst:    dst,
	}, nil
}

// drain copies every pipe into its destination until all of them reach end of file.
func (p *outputPipes) drain() {
	var wg sync.WaitGroup

	for _, pipe := range p.pipes {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// A read error only means the pipe was released early.
			_, _ = io.Copy(pipe.dst, pipe.reader)
		}()
	}

	wg.Wait()
}

func (p *outputPipes) closeWriters() {
	for _, pipe := range p.pipes {
		_ = pipe.writer.Close()
	}
}

func (p *outputPipes) closeReaders() {
	p.closeOnce.Do(func() {
		for _, pipe := range p.pipes {
			_ = pipe.reader.Close()
		}
	})
}

func (p *outputPipes) closeAll() {
	p.closeWriters()
	p.closeReaders()
}
