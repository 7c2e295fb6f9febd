// Package watch follows a growing file and delivers each new line.
package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often the file is re-read when no event
// arrives, for filesystems that drop notifications.
const DefaultPollInterval = time.Second

// Follower tails a file. Lines that already exist are delivered first, then
// every complete line appended afterwards. A trailing partial line is held
// until its newline arrives. If the file shrinks it is assumed to have been
// truncated and is read again from the start.
type Follower struct {
	path     string
	fsw      *fsnotify.Watcher
	onLine   func(line string) error
	onError  func(error)
	interval time.Duration
	offset   int64
	partial  []byte
}

// Option configures a Follower.
type Option func(*Follower)

// WithPollInterval sets the fallback re-read interval. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(f *Follower) {
		f.interval = d
	}
}

// WithErrorHandler receives watcher errors, which are otherwise ignored.
func WithErrorHandler(fn func(error)) Option {
	return func(f *Follower) {
		f.onError = fn
	}
}

// NewFollower creates a follower for path. onLine is called for every line
// without its terminator; a returned error stops the follower.
func NewFollower(path string, onLine func(line string) error, opts ...Option) (*Follower, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	f := &Follower{
		path:     filepath.Clean(path),
		fsw:      fsw,
		onLine:   onLine,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Start delivers the existing lines and then blocks delivering new ones
// until ctx is done or onLine fails. It returns ctx.Err() on cancellation.
func (f *Follower) Start(ctx context.Context) error {
	defer f.fsw.Close()

	// Watch the directory so the file can be created or replaced.
	if err := f.fsw.Add(filepath.Dir(f.path)); err != nil {
		return err
	}

	if err := f.drain(); err != nil {
		return err
	}

	var tick <-chan time.Time
	if f.interval > 0 {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-f.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.drain(); err != nil {
				return err
			}

		case err, ok := <-f.fsw.Errors:
			if !ok {
				return nil
			}
			if f.onError != nil {
				f.onError(err)
			}

		case <-tick:
			if err := f.drain(); err != nil {
				return err
			}
		}
	}
}

// Offset returns the number of bytes consumed so far, including any held
// partial line.
func (f *Follower) Offset() int64 {
	return f.offset
}

// drain reads from the current offset to the end of the file.
func (f *Follower) drain() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = f.partial[:0]
	}
	if info.Size() == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(buf[:i], []byte{'\r'})
		if err := f.onLine(string(line)); err != nil {
			return err
		}
		buf = buf[i+1:]
	}
	f.partial = append(f.partial[:0], buf...)
	return nil
}
