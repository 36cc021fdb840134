package snmp

// cursor is a bounded reader over a byte slice. Every read is checked
// against the end of the slice it was created from.
type cursor struct {
	buf []byte
	pos int
	// base is the offset of buf within the original packet, for error reporting.
	base int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

// peek returns the next byte without consuming it.
func (c *cursor) peek() (byte, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	return c.buf[c.pos], true
}

// next consumes one byte.
func (c *cursor) next() (byte, bool) {
	b, ok := c.peek()
	if ok {
		c.pos++
	}
	return b, ok
}

// take consumes n bytes. It fails without moving when fewer remain.
func (c *cursor) take(n int) ([]byte, bool) {
	if n < 0 || n > c.remaining() {
		return nil, false
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, true
}

// sub consumes n bytes and returns a cursor bounded to them.
func (c *cursor) sub(n int) (*cursor, bool) {
	start := c.offset()
	b, ok := c.take(n)
	if !ok {
		return nil, false
	}
	return &cursor{buf: b, base: start}, true
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) atEnd() bool {
	return c.pos >= len(c.buf)
}

// offset is the absolute position within the original packet.
func (c *cursor) offset() int {
	return c.base + c.pos
}
