package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"al.essio.dev/pkg/shellescape"

	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

const noMatches = "No matches found"

// Grepper runs ripgrep through a StreamingExec and formats its JSON events.
// The same code serves every backend; only exec and the path resolver differ.
type Grepper struct {
	exec    executor.StreamingExec
	resolve func(userPath string) string
	limits  Limits
	exclude []string
}

// NewGrepper creates a Grepper. resolve maps the user supplied search path to
// the path rg should see (for example the guest path inside a container).
func NewGrepper(exec executor.StreamingExec, resolve func(userPath string) string, limits Limits) *Grepper {
	if exec == nil {
		panic("exec is required")
	}
	if resolve == nil {
		resolve = func(p string) string { return p }
	}
	return &Grepper{exec: exec, resolve: resolve, limits: limits}
}

// Exclude hides paths matching the given globs from every search.
func (g *Grepper) Exclude(globs ...string) *Grepper {
	g.exclude = append(g.exclude, globs...)
	return g
}

// rgEvent is one line of `rg --json` output. Only match and context events
// carry the fields we read.
type rgEvent struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber *int `json:"line_number"`
	} `json:"data"`
}

// Command builds the rg command line for p against searchPath. Paths matching
// an exclude glob are skipped.
func Command(p Params, searchPath string, exclude ...string) string {
	args := []string{"rg", "--json", "--line-number", "--color=never", "--hidden"}
	if p.IgnoreCase {
		args = append(args, "--ignore-case")
	}
	if p.Literal {
		args = append(args, "--fixed-strings")
	}
	if p.Glob != "" {
		args = append(args, "--glob", p.Glob)
	}
	for _, x := range exclude {
		args = append(args, "--glob", "!"+x)
	}
	if p.Context > 0 {
		args = append(args, "-C", strconv.Itoa(p.Context))
	}
	args = append(args, p.Pattern, searchPath)
	return shellescape.QuoteCommand(args)
}

// Grep searches for p.Pattern. When more than the limit of matches exist rg
// is stopped early and the result says so. Exit codes 0 and 1 are success.
func (g *Grepper) Grep(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errutil.ErrAborted
	}

	userPath := p.Path
	if userPath == "" {
		userPath = "."
	}
	searchPath := g.resolve(userPath)
	limit := p.Limit
	if limit <= 0 {
		limit = g.limits.DefaultLimit
	}
	limit = max(limit, 1)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	f := &formatter{searchPath: searchPath, limit: limit, maxLine: g.limits.MaxLineLength, stop: stop}
	var stderr bytes.Buffer

	rc, err := g.exec(runCtx, Command(p, searchPath, g.exclude...), f.write, func(b []byte) { stderr.Write(b) })
	switch {
	case ctx.Err() != nil:
		return nil, errutil.ErrAborted
	case f.killed:
		// stopped on purpose
	case err != nil:
		return nil, err
	case rc != 0 && rc != 1:
		return nil, &CommandFailedError{ExitCode: rc, Stderr: strings.TrimSpace(stderr.String())}
	}
	if !f.killed {
		f.flush()
	}

	return g.result(f), nil
}

func (g *Grepper) result(f *formatter) *Result {
	if f.matches == 0 {
		return &Result{Text: noMatches}
	}

	res := &Result{MatchCount: min(f.matches, f.limit), LinesTruncated: f.linesTruncated}
	out := strings.Join(f.lines, "\n")

	if g.limits.MaxBytes > 0 && len(out) > g.limits.MaxBytes {
		res.BytesTruncated = true
		res.OriginalSize = len(out)
		out = keepWholeLines(f.lines, g.limits.MaxBytes)
	}

	var notices []string
	if f.killed {
		res.MatchLimitReached = f.limit
		notices = append(notices, fmt.Sprintf("%d matches limit reached. Use limit=%d for more, or refine pattern", f.limit, f.limit*2))
	}
	if res.BytesTruncated {
		notices = append(notices, fmt.Sprintf("%s limit reached", formatSize(g.limits.MaxBytes)))
	}
	if res.LinesTruncated {
		notices = append(notices, fmt.Sprintf("Some lines truncated to %d chars. Use read tool to see full lines", f.maxLine))
	}
	if len(notices) > 0 {
		out += "\n\n[" + strings.Join(notices, ". ") + "]"
	}
	res.Text = out
	return res
}

// formatter consumes rg stdout chunks. Callbacks are serialized by the exec.
type formatter struct {
	searchPath string
	limit      int
	maxLine    int
	stop       context.CancelFunc

	remainder      []byte
	lines          []string
	matches        int
	killed         bool
	linesTruncated bool
}

func (f *formatter) write(chunk []byte) {
	if f.killed {
		return
	}
	f.remainder = append(f.remainder, chunk...)
	for {
		i := bytes.IndexByte(f.remainder, '\n')
		if i < 0 {
			return
		}
		line := f.remainder[:i]
		f.remainder = f.remainder[i+1:]
		if !f.event(line) {
			return
		}
	}
}

func (f *formatter) flush() {
	if len(f.remainder) > 0 {
		f.event(f.remainder)
		f.remainder = nil
	}
}

// event handles one JSON line and reports whether to keep reading.
func (f *formatter) event(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return true
	}
	var ev rgEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return true
	}

	if ev.Type == "match" {
		f.matches++
		if f.matches > f.limit {
			f.killed = true
			f.remainder = nil
			f.stop()
			return false
		}
	}
	if ev.Type != "match" && ev.Type != "context" {
		return true
	}
	if ev.Data.Path.Text == "" || ev.Data.LineNumber == nil {
		return true
	}

	text := strings.TrimSuffix(ev.Data.Lines.Text, "\n")
	text = strings.ReplaceAll(text, "\r", "")
	if f.maxLine > 0 && utf8.RuneCountInString(text) > f.maxLine {
		text = truncateRunes(text, f.maxLine) + "... [truncated]"
		f.linesTruncated = true
	}

	sep := "-"
	if ev.Type == "match" {
		sep = ":"
	}
	f.lines = append(f.lines, fmt.Sprintf("%s%s%d%s %s", displayPath(f.searchPath, ev.Data.Path.Text), sep, *ev.Data.LineNumber, sep, text))
	return true
}

// displayPath shows file relative to the search root, or its base name when
// the search targeted a single file or the path lies outside the root.
func displayPath(root, file string) string {
	root = path.Clean(root)
	file = path.Clean(file)
	switch {
	case root == ".":
		if !strings.HasPrefix(file, "../") && file != ".." && !path.IsAbs(file) {
			return file
		}
	case root == "/":
		if rel := strings.TrimPrefix(file, "/"); rel != "" {
			return rel
		}
	case strings.HasPrefix(file, root+"/"):
		return file[len(root)+1:]
	}
	return path.Base(file)
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func keepWholeLines(lines []string, maxBytes int) string {
	var kept []string
	size := 0
	for _, line := range lines {
		n := len(line)
		if len(kept) > 0 {
			n++
		}
		if size+n > maxBytes {
			break
		}
		kept = append(kept, line)
		size += n
	}
	return strings.Join(kept, "\n")
}

func formatSize(n int) string {
	if n%1024 == 0 {
		return strconv.Itoa(n/1024) + "KB"
	}
	return strconv.Itoa(n) + "B"
}

// IsNoMatches reports whether a result is the empty-search placeholder.
func IsNoMatches(r *Result) bool {
	return r != nil && r.MatchCount == 0 && r.Text == noMatches
}
