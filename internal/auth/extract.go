package auth

import "strings"

// ExtractJSON returns the text from the first '{' to the last '}'. It does
// not validate the JSON; the config/create call parses it.
func ExtractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || start > end {
		return "", false
	}
	return text[start : end+1], true
}
