package shell

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf     []byte
	max     int
	dropped bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		// append reallocates once capacity runs out, copying only the tail
		b.buf = b.buf[over:]
		b.dropped = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }

func (b *tailBuffer) Dropped() bool { return b.dropped }
