package snmp

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	values := []int32{0, 1, 127, 128, 255, 256, 32767, 65535, 2147483647, -1, -128, -32768, -2147483648}
	for _, v := range values {
		t.Run(fmt.Sprint(v), func(t *testing.T) {
			b := encodeInteger(nil, v)
			assert.Len(t, b, sizeOfInteger(v))

			got, ok := decodeInteger(newCursor(b), len(b))
			require.True(t, ok)
			assert.Equal(t, v, got)
		})
	}
}

func TestIntegerMinimalWidth(t *testing.T) {
	assert.Equal(t, []byte{0x00}, encodeInteger(nil, 0))
	assert.Equal(t, []byte{0x7f}, encodeInteger(nil, 127))
	assert.Equal(t, []byte{0x00, 0x80}, encodeInteger(nil, 128))
	assert.Equal(t, []byte{0xff}, encodeInteger(nil, -1))
	assert.Equal(t, []byte{0xff, 0x7f}, encodeInteger(nil, -129))
}

func TestDecodeIntegerSignExtends(t *testing.T) {
	got, ok := decodeInteger(newCursor([]byte{0xfe}), 1)
	require.True(t, ok)
	assert.Equal(t, int32(-2), got)

	_, ok = decodeInteger(newCursor([]byte{1, 2, 3, 4, 5}), 5)
	assert.False(t, ok)
}

func TestUnsignedRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 255, 32768, 1 << 31, 4294967295} {
		b := encodeUnsigned(nil, v)
		assert.Len(t, b, sizeOfUnsigned(v))
		assert.Zero(t, b[0]&0x80, "value %d must encode as non-negative", v)

		got, ok := decodeUnsigned(newCursor(b), len(b))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestDecodeUnsignedPad(t *testing.T) {
	got, ok := decodeUnsigned(newCursor([]byte{0x00, 0xff, 0xff, 0xff, 0xff}), 5)
	require.True(t, ok)
	assert.Equal(t, uint32(math.MaxUint32), got)

	_, ok = decodeUnsigned(newCursor([]byte{0x01, 0x00, 0x00, 0x00, 0x05}), 5)
	assert.False(t, ok, "a non-zero fifth byte does not fit in 32 bits")

	_, ok = decodeUnsigned(newCursor([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x05}), 6)
	assert.False(t, ok)
}

func TestLengthRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 255, 256, 65535} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			b, err := encodeLength(nil, n)
			require.NoError(t, err)

			size, err := sizeOfLength(n)
			require.NoError(t, err)
			assert.Len(t, b, size)

			got, ok := decodeLength(newCursor(b))
			require.True(t, ok)
			assert.Equal(t, n, got)
		})
	}
}

func TestLengthTooLarge(t *testing.T) {
	_, err := encodeLength(nil, 65536)
	assert.ErrorIs(t, err, ErrLengthTooLarge)

	_, err = sizeOfLength(65536)
	assert.ErrorIs(t, err, ErrLengthTooLarge)
}

func TestDecodeLengthLongForm(t *testing.T) {
	got, ok := decodeLength(newCursor([]byte{0x83, 0x01, 0x00, 0x00}))
	require.True(t, ok)
	assert.Equal(t, 65536, got)

	_, ok = decodeLength(newCursor([]byte{0x85, 1, 2, 3, 4, 5}))
	assert.False(t, ok)

	_, ok = decodeLength(newCursor([]byte{0x82, 0x01}))
	assert.False(t, ok)
}

func TestPackedIntegerRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 127, 128, 16383, 16384, 2097151, 2097152, 4294967295} {
		t.Run(fmt.Sprint(v), func(t *testing.T) {
			b := encodePackedInteger(nil, v)
			assert.Len(t, b, sizeOfPackedInteger(v))

			c := newCursor(b)
			got, ok := decodePackedInteger(c)
			require.True(t, ok)
			assert.Equal(t, v, got)
			assert.True(t, c.atEnd())
		})
	}
}

func TestOIDRoundTrip(t *testing.T) {
	for arc0 := uint32(0); arc0 <= 1; arc0++ {
		for arc1 := uint32(0); arc1 < 40; arc1++ {
			oid := OID{arc0, arc1, 5, 300, 70000}
			require.NoError(t, validOID(oid))

			b := encodeOID(nil, oid)
			assert.Len(t, b, sizeOfOID(oid))

			got, ok := decodeOID(newCursor(b), len(b), MaxOIDLen)
			require.True(t, ok)
			assert.Equal(t, oid, got, "oid %s", oid)
		}
	}

	for _, arc1 := range []uint32{0, 39, 40, 175, 1000} {
		oid := OID{2, arc1, 1}
		b := encodeOID(nil, oid)
		got, ok := decodeOID(newCursor(b), len(b), MaxOIDLen)
		require.True(t, ok)
		assert.Equal(t, oid, got, "oid %s", oid)
	}
}

func TestValidOID(t *testing.T) {
	assert.ErrorIs(t, validOID(OID{1}), ErrOIDTooLong)
	assert.ErrorIs(t, validOID(OID{3, 1}), ErrOIDTooLong)
	assert.ErrorIs(t, validOID(OID{1, 40}), ErrOIDTooLong)
	assert.ErrorIs(t, validOID(make(OID, MaxOIDLen+1)), ErrOIDTooLong)
	assert.NoError(t, validOID(make(OID, MaxOIDLen)))

	assert.NoError(t, validOID(OID{2, math.MaxUint32 - 80}))
	assert.ErrorIs(t, validOID(OID{2, math.MaxUint32 - 79, 1}), ErrOIDTooLong)
	assert.ErrorIs(t, validOID(OID{2, math.MaxUint32, 1}), ErrOIDTooLong)
}

func TestOIDLargeSecondArc(t *testing.T) {
	oid := OID{2, math.MaxUint32 - 80, 7}
	require.NoError(t, validOID(oid))
	b := encodeOID(nil, oid)
	assert.Len(t, b, sizeOfOID(oid))

	got, ok := decodeOID(newCursor(b), len(b), MaxOIDLen)
	require.True(t, ok)
	assert.Equal(t, oid, got)
}

func TestDecodeOIDCapacity(t *testing.T) {
	oid := OID{1, 3, 6, 1, 2, 1, 43}
	b := encodeOID(nil, oid)
	trailer := []byte{0x05, 0x00}

	c := newCursor(append(b, trailer...))
	got, ok := decodeOID(c, len(b), 4)
	require.True(t, ok)
	assert.Equal(t, OID{1, 3, 6, 1}, got)
	assert.Equal(t, len(trailer), c.remaining(), "cursor must move past the full body")
}

func TestDecodeOctetStringCapacity(t *testing.T) {
	c := newCursor([]byte("abcdef"))
	got, ok := decodeOctetString(c, 6, 4)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
	assert.True(t, c.atEnd())

	_, ok = decodeOctetString(newCursor([]byte("ab")), 3, 10)
	assert.False(t, ok)
}

func TestDecodeTagHighNumber(t *testing.T) {
	tag, ok := decodeTag(newCursor([]byte{0x1f, 0x81, 0x00}))
	require.True(t, ok)
	assert.Equal(t, Tag(128), tag)
}

func TestCursorBounds(t *testing.T) {
	c := newCursor([]byte{1, 2, 3})
	_, ok := c.take(4)
	assert.False(t, ok)
	assert.Equal(t, 3, c.remaining(), "failed take must not move")

	sub, ok := c.sub(2)
	require.True(t, ok)
	assert.Equal(t, 0, sub.offset())
	_, _ = sub.next()
	assert.Equal(t, 1, sub.offset())
	assert.Equal(t, 2, c.offset())
}
