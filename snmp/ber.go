package snmp

import "math"

// BER primitives. Decoders read from a bounded cursor and report failure
// with a false ok value; the packet codec maps failures to stable reasons.
// Encoders append to a destination whose capacity has already been checked
// against the sizeOf* totals, so a packet is written front to back once.

const maxLength = 65535

// decodeTag reads an identifier. The whole identifier byte is the tag unless
// its low five bits are all ones, in which case the tag number follows as a
// packed integer.
func decodeTag(c *cursor) (Tag, bool) {
	b, ok := c.next()
	if !ok {
		return 0, false
	}
	if b&0x1f != 0x1f {
		return Tag(b), true
	}
	v, ok := decodePackedInteger(c)
	if !ok {
		return 0, false
	}
	return Tag(v), true
}

// decodeLength reads a short or long form length. The indefinite form (0x80)
// decodes as zero; callers reject zero lengths where framing requires content.
func decodeLength(c *cursor) (int, bool) {
	b, ok := c.next()
	if !ok {
		return 0, false
	}
	if b&0x80 == 0 {
		return int(b), true
	}
	n := int(b & 0x7f)
	if n > 4 {
		return 0, false
	}
	raw, ok := c.take(n)
	if !ok {
		return 0, false
	}
	length := 0
	for _, v := range raw {
		length = length<<8 | int(v)
	}
	if length < 0 {
		return 0, false
	}
	return length, true
}

// decodeInt64 accumulates n big-endian bytes, sign-extending the first one.
func decodeInt64(c *cursor, n int) (int64, bool) {
	if n > 8 {
		c.take(n)
		return 0, false
	}
	raw, ok := c.take(n)
	if !ok {
		return 0, false
	}
	var v int64
	for i, b := range raw {
		if i == 0 && b&0x80 != 0 {
			v = -1
		}
		v = v<<8 | int64(b)
	}
	return v, true
}

// decodeInteger reads an INTEGER body of n bytes.
func decodeInteger(c *cursor, n int) (int32, bool) {
	if n > 4 {
		c.take(n)
		return 0, false
	}
	v, ok := decodeInt64(c, n)
	return int32(v), ok
}

// decodeUnsigned reads a Counter, Gauge, TimeTicks or request-id body. A
// leading zero pad byte is allowed, so up to five bytes are accepted, but a
// five byte body must start with that pad.
func decodeUnsigned(c *cursor, n int) (uint32, bool) {
	if n > 5 {
		c.take(n)
		return 0, false
	}
	raw, ok := c.take(n)
	if !ok || (n == 5 && raw[0] != 0) {
		return 0, false
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return uint32(v), true
}

// decodePackedInteger reads a base-128 integer with the continuation bit on
// every byte but the last.
func decodePackedInteger(c *cursor) (uint32, bool) {
	var v uint32
	for {
		b, ok := c.next()
		if !ok {
			return 0, false
		}
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, true
		}
	}
}

// decodeOID reads an OBJECT IDENTIFIER body of n bytes. Arcs beyond capacity
// are dropped while the cursor still moves past the full body. A capacity of
// zero or less keeps every arc.
func decodeOID(c *cursor, n int, capacity int) (OID, bool) {
	body, ok := c.sub(n)
	if !ok {
		return nil, false
	}
	oid := make(OID, 0, 16)
	keep := func(arc uint32) {
		if capacity <= 0 || len(oid) < capacity {
			oid = append(oid, arc)
		}
	}
	if body.atEnd() {
		return oid, true
	}

	first, ok := decodePackedInteger(body)
	if !ok {
		return nil, false
	}
	if first < 80 {
		keep(first / 40)
		keep(first % 40)
	} else {
		keep(2)
		keep(first - 80)
	}

	for !body.atEnd() {
		arc, ok := decodePackedInteger(body)
		if !ok {
			return nil, false
		}
		keep(arc)
	}
	return oid, true
}

// decodeOctetString copies at most capacity-1 bytes of an n byte body and
// always advances past the full body.
func decodeOctetString(c *cursor, n int, capacity int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	raw, ok := c.take(n)
	if !ok {
		return nil, false
	}
	if capacity > 0 && len(raw) > capacity-1 {
		raw = raw[:capacity-1]
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true
}

// sizeOfLength returns the number of bytes encodeLength writes for n.
func sizeOfLength(n int) (int, error) {
	switch {
	case n < 0:
		return 0, ErrLengthTooLarge
	case n <= 127:
		return 1, nil
	case n <= 255:
		return 2, nil
	case n <= maxLength:
		return 3, nil
	default:
		return 0, ErrLengthTooLarge
	}
}

// encodeLength appends the minimal length encoding.
func encodeLength(dst []byte, n int) ([]byte, error) {
	switch {
	case n < 0:
		return dst, ErrLengthTooLarge
	case n <= 127:
		return append(dst, byte(n)), nil
	case n <= 255:
		return append(dst, 0x81, byte(n)), nil
	case n <= maxLength:
		return append(dst, 0x82, byte(n>>8), byte(n)), nil
	default:
		return dst, ErrLengthTooLarge
	}
}

// sizeOfInteger returns the smallest width whose signed range covers v.
func sizeOfInteger(v int32) int {
	switch {
	case v >= -0x80 && v <= 0x7f:
		return 1
	case v >= -0x8000 && v <= 0x7fff:
		return 2
	case v >= -0x800000 && v <= 0x7fffff:
		return 3
	default:
		return 4
	}
}

func encodeInteger(dst []byte, v int32) []byte {
	for i := sizeOfInteger(v) - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// sizeOfUnsigned returns the width of v as a non-negative INTEGER, which
// needs a zero pad byte when the top bit of the leading byte is set.
func sizeOfUnsigned(v uint32) int {
	n := 1
	for x := v >> 7; x != 0; x >>= 8 {
		n++
	}
	return n
}

func encodeUnsigned(dst []byte, v uint32) []byte {
	for i := sizeOfUnsigned(v) - 1; i >= 0; i-- {
		if i >= 4 {
			dst = append(dst, 0)
			continue
		}
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// sizeOfPackedInteger counts the 7-bit groups of v.
func sizeOfPackedInteger(v uint32) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

func encodePackedInteger(dst []byte, v uint32) []byte {
	for i := sizeOfPackedInteger(v) - 1; i > 0; i-- {
		dst = append(dst, byte(v>>(7*i))|0x80)
	}
	return append(dst, byte(v&0x7f))
}

// validOID reports whether oid can be encoded: two to MaxOIDLen arcs with a
// first arc of 0, 1 or 2 and, below 2, a second arc under 40. The first two
// arcs share one subidentifier, so first*40+second must fit in 32 bits.
func validOID(oid OID) error {
	if len(oid) < 2 || len(oid) > MaxOIDLen {
		return ErrOIDTooLong
	}
	if oid[0] > 2 || (oid[0] < 2 && oid[1] >= 40) {
		return ErrOIDTooLong
	}
	if oid[0] == 2 && oid[1] > math.MaxUint32-80 {
		return ErrOIDTooLong
	}
	return nil
}

// sizeOfOID returns the body size of an OID that passed validOID.
func sizeOfOID(oid OID) int {
	n := sizeOfPackedInteger(oid[0]*40 + oid[1])
	for _, arc := range oid[2:] {
		n += sizeOfPackedInteger(arc)
	}
	return n
}

func encodeOID(dst []byte, oid OID) []byte {
	dst = encodePackedInteger(dst, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		dst = encodePackedInteger(dst, arc)
	}
	return dst
}

// sizeOfTLV returns the size of a tag, length and body of n bytes.
func sizeOfTLV(n int) (int, error) {
	l, err := sizeOfLength(n)
	if err != nil {
		return 0, err
	}
	return 1 + l + n, nil
}

// encodeHeader appends a single byte tag and the length of the body that follows.
func encodeHeader(dst []byte, tag Tag, n int) ([]byte, error) {
	return encodeLength(append(dst, byte(tag)), n)
}
