package logsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// LineSource opens a stream of log lines.
type LineSource interface {
	// Name identifies the access path in logs and status output.
	Name() string
	// Open starts streaming. The caller must Close the stream; Close unblocks
	// a concurrent Read.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// waitDelay bounds how long Close waits for a killed child to release its
// stdout. Brokers like su may leave a grandchild holding the pipe.
const waitDelay = 2 * time.Second

// CommandSource streams the stdout of a child process.
type CommandSource struct {
	name string
	argv []string
}

// NewDirect runs argv directly, e.g. ["logcat", "-v", "time"].
func NewDirect(argv []string) *CommandSource {
	return &CommandSource{name: "direct", argv: append([]string(nil), argv...)}
}

// NewBroker runs argv through a mediating privilege broker, e.g.
// ["su", "-c", "logcat -v time"].
func NewBroker(argv []string) *CommandSource {
	return &CommandSource{name: "broker", argv: append([]string(nil), argv...)}
}

func (s *CommandSource) Name() string { return s.name }

// Command returns a copy of the argv this source runs.
func (s *CommandSource) Command() []string { return append([]string(nil), s.argv...) }

func (s *CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.argv) == 0 || strings.TrimSpace(s.argv[0]) == "" {
		return nil, unavailable(s.name, errors.New("empty command"))
	}
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = nil
	cmd.Stderr = nil
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, unavailable(s.name, fmt.Errorf("stdout pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return nil, unavailable(s.name, fmt.Errorf("start %s: %w", s.argv[0], err))
	}
	return &procStream{stdout: stdout, cmd: cmd}, nil
}

// procStream serializes Read against Close so the child is reaped only after
// the last read from its stdout pipe has returned.
type procStream struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd

	reading sync.Mutex
	closed  bool
	once    sync.Once
	err     error
}

func (p *procStream) Read(b []byte) (int, error) {
	p.reading.Lock()
	defer p.reading.Unlock()
	if p.closed {
		return 0, os.ErrClosed
	}
	return p.stdout.Read(b)
}

// Close kills the child and closes the pipe, which unblocks a pending Read.
// Once that Read has returned the child is reaped.
func (p *procStream) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.stdout.Close()
		p.reading.Lock()
		p.closed = true
		p.reading.Unlock()
		// A kill-induced exit status is expected and not reported.
		if err := p.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) && !errors.Is(err, os.ErrClosed) {
				p.err = err
			}
		}
	})
	return p.err
}

// ReaderSource wraps an already-open reader such as stdin.
type ReaderSource struct {
	name string
	r    io.Reader
}

func NewReader(name string, r io.Reader) *ReaderSource {
	if name == "" {
		name = "reader"
	}
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Name() string { return s.name }

// Open returns a stream whose Close always unblocks a pending Read. Closers
// other than files are trusted to do that themselves. Files (stdin included)
// and plain readers are pumped through a pipe, since a blocking descriptor
// such as an inherited stdin is not interrupted by closing it.
func (s *ReaderSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.r == nil {
		return nil, unavailable(s.name, errors.New("nil reader"))
	}
	if _, isFile := s.r.(*os.File); !isFile {
		if rc, ok := s.r.(io.ReadCloser); ok {
			return rc, nil
		}
	}
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, s.r)
		_ = pw.CloseWithError(err)
	}()
	return &pumpStream{PipeReader: pr, src: s.r}, nil
}

// pumpStream closes the consumer side first, then the underlying reader if
// it can be closed so the pump goroutine is released too.
type pumpStream struct {
	*io.PipeReader
	src  io.Reader
	once sync.Once
}

func (p *pumpStream) Close() error {
	p.once.Do(func() {
		_ = p.PipeReader.Close()
		if c, ok := p.src.(io.Closer); ok {
			_ = c.Close()
		}
	})
	return nil
}
