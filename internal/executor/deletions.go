package executor

import (
	"regexp"
	"strings"
)

// LineScanner is the iteration surface of logtail.Lines
type LineScanner interface {
	Scan() bool
	Text() string
	Err() error
}

var (
	// NOTICE: Album/a.kar: Skipped delete as --dry-run is set (size 1.2Mi)
	dryRunDeleteRe = regexp.MustCompile(`(?:DEBUG|INFO|NOTICE|WARNING|ERROR)\s*:\s+(.+): Skipped delete as --dry-run is set\b`)
	// INFO  : Album/a.kar: Deleted
	levelDeletedRe = regexp.MustCompile(`(?:DEBUG|INFO|NOTICE|WARNING|ERROR)\s*:\s+(.+): Deleted\s*$`)
	// 2024-01-01 10:00:00 Deleted Album/a.kar
	// Deleted must be the action right after the date and time fields;
	// level-prefixed lines only count through levelDeletedRe.
	trailingDeletedRe = regexp.MustCompile(`^\S+ \S+ Deleted (.+?)\s*$`)
)

// ParseDeletionLine extracts the path from a log line recording a deletion,
// real or simulated.
func ParseDeletionLine(line string) (string, bool) {
	for _, re := range []*regexp.Regexp{dryRunDeleteRe, levelDeletedRe, trailingDeletedRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			path := strings.TrimSpace(m[1])
			if path == "" {
				return "", false
			}
			return path, true
		}
	}
	return "", false
}

// ParseDeletedFiles collects deleted paths in log order, without duplicates.
// Unrecognised lines are skipped.
func ParseDeletedFiles(lines LineScanner) ([]string, error) {
	deleted := []string{}
	seen := make(map[string]struct{})

	for lines.Scan() {
		path, ok := ParseDeletionLine(lines.Text())
		if !ok {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		deleted = append(deleted, path)
	}

	return deleted, lines.Err()
}
