package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TailJSONL streams complete lines appended to a JSONL file. It keeps
// its own byte position so no line is delivered twice within one call,
// and only emits lines terminated by a newline (a partially written
// tail is left for the next read). Wake-ups come from fsnotify events
// on the parent directory, with a polling ticker as fallback for
// filesystems without notification support.
//
// When fromEnd is true, lines already present at start are skipped.
// The function returns when ctx is done.
func TailJSONL(ctx context.Context, path string, fromEnd bool, pollEvery time.Duration, emit func(line []byte)) error {
	var pos int64
	if fromEnd {
		if info, err := os.Stat(path); err == nil {
			pos = info.Size()
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() { _ = watcher.Close() }()
		// Watch the parent so creation of the log file itself is seen.
		_ = watcher.Add(filepath.Dir(path))
	}

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	drain := func() {
		pos = emitNewLines(path, pos, emit)
	}

	drain()
	for {
		if watcher != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-watcher.Events:
				if event.Name == path {
					drain()
				}
			case <-watcher.Errors:
				// Fall back to the ticker.
			case <-ticker.C:
				drain()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			drain()
		}
	}
}

// emitNewLines reads complete lines appended past pos and returns the
// new position. If the file shrank (rotation), reading restarts at 0.
func emitNewLines(path string, pos int64, emit func(line []byte)) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return pos
	}
	if info.Size() < pos {
		pos = 0
	}
	if info.Size() == pos {
		return pos
	}

	f, err := os.Open(path)
	if err != nil {
		return pos
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(pos, 0); err != nil {
		return pos
	}
	buf := make([]byte, info.Size()-pos)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return pos
	}
	buf = buf[:n]

	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			// Partial tail line stays unconsumed until its newline lands.
			break
		}
		line := bytes.TrimSpace(buf[:idx])
		if len(line) > 0 {
			emit(line)
		}
		pos += int64(idx + 1)
		buf = buf[idx+1:]
	}
	return pos
}
