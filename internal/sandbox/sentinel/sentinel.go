// Package sentinel frames the end of one command's output inside a shared
// shell stdout stream.
//
// A marker looks like "\x00\x00PIEOF:<exit_code>:<id>\x00\x00\n". The id is
// unique per command so that marker-like bytes printed by the command itself
// (or left over from an earlier command) are never taken as the boundary.
package sentinel

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"al.essio.dev/pkg/shellescape"
)

// Prefix opens every marker.
var Prefix = []byte("\x00\x00PIEOF:")

// TailSize is how many trailing bytes a streaming reader must hold back so a
// marker is never split across two deliveries. It must exceed the longest
// marker (prefix + exit code + 36-char uuid + framing, about 52 bytes).
const TailSize = 64

var markerPattern = regexp.MustCompile(`^\x00\x00PIEOF:(\d+):([^\x00]+)\x00\x00`)

// Marker is a decoded end-of-command marker.
type Marker struct {
	// Offset is the byte index of the marker prefix; output before it
	// belongs to the command.
	Offset   int
	ExitCode int
}

// Find scans buf for the marker carrying id.
//
// It reports false when no complete marker for id is present yet, including
// when a prefix is found but its terminating newline has not arrived. Markers
// with a different id or an unparsable exit code are treated as ordinary
// output and skipped.
func Find(buf []byte, id string) (Marker, bool) {
	searchFrom := 0
	for {
		rel := bytes.Index(buf[searchFrom:], Prefix)
		if rel == -1 {
			return Marker{}, false
		}
		idx := searchFrom + rel

		nl := bytes.IndexByte(buf[idx+len(Prefix):], '\n')
		if nl == -1 {
			return Marker{}, false
		}
		candidate := buf[idx : idx+len(Prefix)+nl]

		if m := markerPattern.FindSubmatch(candidate); m != nil && string(m[2]) == id {
			code, err := strconv.Atoi(string(m[1]))
			if err == nil {
				return Marker{Offset: idx, ExitCode: code}, true
			}
		}

		searchFrom = idx + len(Prefix)
	}
}

// Encode renders the marker bytes for an exit code and id, as the shell
// prints them.
func Encode(exitCode int, id string) []byte {
	return fmt.Appendf(nil, "\x00\x00PIEOF:%d:%s\x00\x00\n", exitCode, id)
}

// TrapScript makes SIGUSR1 kill the current background job. It is written
// once when a session starts. Monitor mode gives every job its own process
// group so the whole job tree is signalled, not just its leader.
const TrapScript = "set -m\ntrap 'kill -TERM -- -\"$_bg\" 2>/dev/null || kill \"$_bg\" 2>/dev/null' USR1\n"

// BufferedScript wraps cmd so its stderr is folded into stdout and the marker
// carrying its exit status follows its output. stdin is detached so cmd cannot
// swallow the scripts queued behind it.
func BufferedScript(cmd, id string) string {
	return fmt.Sprintf("( %s\n) 2>&1 </dev/null\nprintf '\\0\\0PIEOF:%%d:%%s\\0\\0\\n' $? %s\n", cmd, shellescape.Quote(id))
}

// StreamingScript runs cmd as a background job so the USR1 trap can kill it
// while the shell is blocked in wait, then prints the marker. cmd is braced so
// a list such as "cd x && make" is backgrounded as a whole, and detached from
// the session's stdin.
func StreamingScript(cmd, id string) string {
	return fmt.Sprintf("{ %s\n} </dev/null & _bg=$!\nwait \"$_bg\" 2>/dev/null\n_rc=$?; _bg=\nprintf '\\0\\0PIEOF:%%d:%%s\\0\\0\\n' \"$_rc\" %s\n", cmd, shellescape.Quote(id))
}
