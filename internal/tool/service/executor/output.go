package executor

import (
	"bytes"

	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
)

// binaryPlaceholder replaces the output of a helper that printed binary data.
const binaryPlaceholder = "[Binary Content]"

// collector keeps at most max bytes of one output stream. Output whose first
// sniff bytes contain a NUL is dropped entirely and reported as binary.
type collector struct {
	buf       bytes.Buffer
	max       int
	sniff     int
	seen      int
	binary    bool
	truncated bool
}

func newCollector(max, sniff int) *collector {
	return &collector{max: max, sniff: sniff}
}

func (c *collector) Write(p []byte) (int, error) {
	n := len(p)
	if c.binary {
		return n, nil
	}
	if c.seen < c.sniff {
		head := p[:min(len(p), c.sniff-c.seen)]
		c.seen += len(head)
		if content.IsBinary(head) {
			c.binary, c.truncated = true, true
			c.buf.Reset()
			return n, nil
		}
	}
	room := c.max - c.buf.Len()
	if len(p) > room {
		p = p[:max(room, 0)]
		c.truncated = true
	}
	c.buf.Write(p)
	return n, nil
}

func (c *collector) String() string {
	if c.binary {
		return binaryPlaceholder
	}
	return c.buf.String()
}

func (c *collector) Truncated() bool { return c.truncated }
