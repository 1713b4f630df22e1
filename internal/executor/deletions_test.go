package executor

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeletionLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		path string
		ok   bool
	}{
		{
			name: "dry run notice",
			line: "2024/01/01 10:00:00 NOTICE: Album/old song.kar: Skipped delete as --dry-run is set (size 12.3Ki)",
			path: "Album/old song.kar",
			ok:   true,
		},
		{
			name: "real delete",
			line: "2024/01/01 10:00:00 INFO  : Album/gone.kar: Deleted",
			path: "Album/gone.kar",
			ok:   true,
		},
		{
			name: "generic trailing form",
			line: "2024-01-01 ... Deleted a.txt",
			path: "a.txt",
			ok:   true,
		},
		{
			name: "generic nested path",
			line: "2024-01-01 ... Deleted b/c.txt",
			path: "b/c.txt",
			ok:   true,
		},
		{
			name: "path containing colon",
			line: "2024/01/01 10:00:00 NOTICE: Live: Tokyo/a.kar: Skipped delete as --dry-run is set",
			path: "Live: Tokyo/a.kar",
			ok:   true,
		},
		{
			name: "copied file",
			line: "2024/01/01 10:00:00 INFO  : Album/new.kar: Copied (new)",
			ok:   false,
		},
		{
			name: "dry run copy of path containing Deleted",
			line: "2024/01/01 10:00:00 NOTICE: Album/Deleted Scenes.kar: Skipped copy as --dry-run is set (size 1.2Mi)",
			ok:   false,
		},
		{
			name: "copied file under Deleted folder",
			line: "2024/01/01 10:00:00 INFO  : Karaoke/Deleted Songs/x.kar: Copied (new)",
			ok:   false,
		},
		{
			name: "top level Deleted folder copied",
			line: "2024/01/01 10:00:00 INFO  : Deleted Songs/x.kar: Copied (new)",
			ok:   false,
		},
		{
			name: "updated file under Deleted folder",
			line: "2024/01/01 10:00:00 INFO  : Karaoke/Deleted Songs/y.kar: Updated modification time in destination",
			ok:   false,
		},
		{
			name: "real delete of path containing Deleted",
			line: "2024/01/01 10:00:00 INFO  : Album/Deleted Scenes.kar: Deleted",
			path: "Album/Deleted Scenes.kar",
			ok:   true,
		},
		{
			name: "timestamped trailing form",
			line: "2024/01/01 10:00:00 Deleted Album/Deleted Scenes.kar",
			path: "Album/Deleted Scenes.kar",
			ok:   true,
		},
		{
			name: "stats line",
			line: "2024/01/01 10:00:00 INFO  : Transferred: 0 B / 0 B, -, 0 B/s, ETA -",
			ok:   false,
		},
		{
			name: "empty",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := ParseDeletionLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestParseDeletedFiles(t *testing.T) {
	log := strings.Join([]string{
		"2024-01-01 ... Deleted a.txt",
		"garbage line",
		"2024-01-01 ... Deleted b/c.txt",
		"2024-01-01 ... Deleted a.txt",
	}, "\n")

	deleted, err := ParseDeletedFiles(bufio.NewScanner(strings.NewReader(log)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, deleted)
}

func TestParseDeletedFiles_Empty(t *testing.T) {
	deleted, err := ParseDeletedFiles(bufio.NewScanner(strings.NewReader("")))
	require.NoError(t, err)
	assert.NotNil(t, deleted)
	assert.Empty(t, deleted)
}

type failingScanner struct{ lines []string }

func (f *failingScanner) Scan() bool {
	if len(f.lines) == 0 {
		return false
	}
	f.lines = f.lines[1:]
	return true
}
func (f *failingScanner) Text() string { return "2024-01-01 10:00:00 Deleted partial.kar" }
func (f *failingScanner) Err() error   { return errors.New("read failed") }

func TestParseDeletedFiles_ScanError(t *testing.T) {
	deleted, err := ParseDeletedFiles(&failingScanner{lines: []string{"one"}})
	assert.Error(t, err)
	assert.Equal(t, []string{"partial.kar"}, deleted)
}
