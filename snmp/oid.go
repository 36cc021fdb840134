package snmp

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxOIDLen is the largest number of arcs the codec encodes or keeps when
// decoding a name.
const MaxOIDLen = 128

// OID is an object identifier as an ordered list of arcs.
type OID []uint32

// ParseOID parses a dotted identifier such as "1.3.6.1.2.1.43" or
// ".1.3.6.1.2.1.43".
func ParseOID(s string) (OID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil, errors.New("empty object identifier")
	}

	parts := strings.Split(s, ".")
	oid := make(OID, 0, len(parts))
	for _, p := range parts {
		arc, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid arc %q in object identifier %q: %w", p, s, err)
		}
		oid = append(oid, uint32(arc))
	}
	return oid, nil
}

// MustParseOID is ParseOID for package-level tables; it panics on bad input.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// String renders the OID in dotted form without a leading dot.
func (o OID) String() string {
	var b strings.Builder
	for i, arc := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return b.String()
}

// Equal reports whether o and other contain the same arcs.
func (o OID) Equal(other OID) bool {
	return slices.Equal(o, other)
}

// HasPrefix reports whether every arc of prefix matches the leading arcs of o.
// An OID is its own prefix.
func (o OID) HasPrefix(prefix OID) bool {
	return len(o) >= len(prefix) && slices.Equal(o[:len(prefix)], prefix)
}

// Compare orders OIDs lexicographically by arc. It returns -1, 0 or 1.
func (o OID) Compare(other OID) int {
	return slices.Compare(o, other)
}

// Copy returns a copy holding at most limit arcs. A limit of zero or less
// copies every arc.
func (o OID) Copy(limit int) OID {
	n := len(o)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make(OID, n)
	copy(out, o[:n])
	return out
}

// Append returns a new OID with arcs added to the end.
func (o OID) Append(arcs ...uint32) OID {
	out := make(OID, 0, len(o)+len(arcs))
	out = append(out, o...)
	return append(out, arcs...)
}
