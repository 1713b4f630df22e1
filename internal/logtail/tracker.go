// Package logtail reads the rclone daemon log from a remembered position.
package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Tracker hands out byte offsets into a log file and reads lines written
// after them. It never writes to or truncates the file.
type Tracker struct {
	path string
}

func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

func (t *Tracker) Path() string {
	return t.path
}

// CurrentOffset returns the current size of the log. A missing log is at
// offset zero.
func (t *Tracker) CurrentOffset() (int64, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return info.Size(), nil
}

// Lines iterates over the lines of a log segment. It can be consumed once.
type Lines struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (l *Lines) Scan() bool {
	if l.scanner == nil {
		return false
	}
	return l.scanner.Scan()
}

func (l *Lines) Text() string {
	return l.scanner.Text()
}

func (l *Lines) Err() error {
	if l.scanner == nil {
		return nil
	}
	return l.scanner.Err()
}

func (l *Lines) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

const maxLineSize = 1024 * 1024

// LinesSince returns the lines appended after offset. If the log shrank
// below offset it was recreated, and reading restarts from the beginning.
func (t *Tracker) LinesSince(offset int64) (*Lines, error) {
	file, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Lines{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	if offset < 0 || offset > info.Size() {
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek log file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &Lines{file: file, scanner: scanner}, nil
}
