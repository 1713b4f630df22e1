package sanitizer

import (
	"regexp"
	"strings"
)

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// SelectionPath cleans up a user-selected path for use in an include rule.
// Backslashes become forward slashes, repeated slashes collapse, and leading
// and trailing slashes are removed. Spaces are kept as remote names may
// carry them. Returns the cleaned path and whether changes were made.
func SelectionPath(path string) (string, bool) {
	original := path

	cleaned := strings.ReplaceAll(path, `\`, "/")
	cleaned = repeatedSlashes.ReplaceAllString(cleaned, "/")
	cleaned = strings.Trim(cleaned, "/")

	return cleaned, cleaned != original
}
