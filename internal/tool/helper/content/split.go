package content

import "strings"

// SplitLines splits text on LF or CRLF. A final line ending does not produce
// an empty trailing line; a lone CR is kept as content.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
