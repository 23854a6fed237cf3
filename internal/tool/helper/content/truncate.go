package content

import "strings"

// Truncation describes how text was cut to fit a line and byte budget.
type Truncation struct {
	Content     string
	Truncated   bool
	TruncatedBy string // "lines" or "bytes"
	TotalLines  int
	OutputLines int
}

// TruncateHead keeps the first lines of text that fit within maxLines and
// maxBytes. Lines are never split.
func TruncateHead(text string, maxLines, maxBytes int) Truncation {
	lines := strings.Split(text, "\n")
	t := Truncation{TotalLines: len(lines)}

	size := 0
	kept := 0
	for i, line := range lines {
		if kept == maxLines {
			t.TruncatedBy = "lines"
			break
		}
		n := len(line)
		if i > 0 {
			n++
		}
		if size+n > maxBytes {
			t.TruncatedBy = "bytes"
			break
		}
		size += n
		kept++
	}

	t.OutputLines = kept
	t.Truncated = kept < len(lines)
	t.Content = strings.Join(lines[:kept], "\n")
	return t
}

// TruncateTail keeps the last lines of text that fit within maxLines and
// maxBytes, the part of command output that usually matters.
func TruncateTail(text string, maxLines, maxBytes int) Truncation {
	lines := strings.Split(text, "\n")
	t := Truncation{TotalLines: len(lines)}

	size := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines)-i > maxLines {
			t.TruncatedBy = "lines"
			break
		}
		n := len(lines[i])
		if i < len(lines)-1 {
			n++
		}
		if size+n > maxBytes {
			t.TruncatedBy = "bytes"
			break
		}
		size += n
		start = i
	}

	t.OutputLines = len(lines) - start
	t.Truncated = start > 0
	t.Content = strings.Join(lines[start:], "\n")
	return t
}
