package logsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"droidscope/internal/common/fsutil"
)

// FileSource follows a growing text file, like `tail -f`.
type FileSource struct {
	path      string
	fromStart bool
}

// NewFile follows path. Unless fromStart is set, reading begins at the current
// end of file so old lines are not replayed.
func NewFile(path string, fromStart bool) *FileSource {
	return &FileSource{path: path, fromStart: fromStart}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	p, err := fsutil.ExpandHome(s.path)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	if !s.fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, unavailable(s.Name(), fmt.Errorf("seek: %w", err))
		}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, unavailable(s.Name(), fmt.Errorf("watcher: %w", err))
	}
	if err := w.Add(p); err != nil {
		_ = w.Close()
		_ = f.Close()
		return nil, unavailable(s.Name(), fmt.Errorf("watch %s: %w", p, err))
	}
	fr := &followReader{file: f, watcher: w, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = fr.Close()
		case <-fr.done:
		}
	}()
	return fr, nil
}

// followReader blocks at EOF until the watcher reports a write, the file is
// removed or renamed, or the reader is closed.
type followReader struct {
	file    *os.File
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

func (f *followReader) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-f.done:
				return 0, io.EOF
			default:
				return 0, err
			}
		}
		select {
		case <-f.done:
			return 0, io.EOF
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return 0, io.EOF
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return 0, io.EOF
			}
			f.rewindIfTruncated()
		case werr, ok := <-f.watcher.Errors:
			if !ok {
				return 0, io.EOF
			}
			return 0, werr
		}
	}
}

func (f *followReader) rewindIfTruncated() {
	pos, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}
	fi, err := f.file.Stat()
	if err != nil {
		return
	}
	if fi.Size() < pos {
		_, _ = f.file.Seek(0, io.SeekStart)
	}
}

func (f *followReader) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		_ = f.watcher.Close()
		err = f.file.Close()
	})
	return err
}
