package snmp

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// maxDumpDepth bounds nesting when rendering hostile input.
const maxDumpDepth = 16

// DumpTLV renders the BER structure of buf as an indented tree, one element
// per line, for debug logging. Malformed input ends the dump with a
// "<truncated>" marker instead of an error.
//
//	SEQUENCE (37)
//	  INTEGER (1) 0
//	  OCTET STRING (6) "public"
//	  Get-Next-Request-PDU (24)
//	  ...
func DumpTLV(buf []byte) string {
	var b strings.Builder
	dumpElements(&b, newCursor(buf), 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func dumpElements(b *strings.Builder, c *cursor, depth int) {
	indent := strings.Repeat("  ", depth)
	for !c.atEnd() {
		tag, ok := decodeTag(c)
		if !ok {
			b.WriteString(indent + "<truncated>\n")
			return
		}
		n, ok := decodeLength(c)
		if !ok || n > c.remaining() {
			fmt.Fprintf(b, "%s%s <truncated>\n", indent, tag)
			return
		}
		body, _ := c.sub(n)

		fmt.Fprintf(b, "%s%s (%d)", indent, tag, n)
		if constructed(tag) && depth < maxDumpDepth {
			b.WriteByte('\n')
			dumpElements(b, body, depth+1)
			continue
		}
		b.WriteString(" " + dumpPrimitive(tag, body.buf) + "\n")
	}
}

// constructed reports whether the identifier has the constructed bit set.
// SEQUENCE and the context-specific PDU tags both do.
func constructed(tag Tag) bool {
	return tag <= 0xff && tag&0x20 != 0
}

func dumpPrimitive(tag Tag, body []byte) string {
	switch tag {
	case TagOctetString:
		if printable(body) {
			return fmt.Sprintf("%q", body)
		}
	case TagOID:
		if oid, ok := decodeOID(newCursor(body), len(body), MaxOIDLen); ok {
			return oid.String()
		}
	case TagInteger:
		if v, ok := decodeInt64(newCursor(body), len(body)); ok {
			return fmt.Sprintf("%d", v)
		}
	}
	return hex.EncodeToString(body)
}
