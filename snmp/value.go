package snmp

import (
	"encoding/hex"
	"net/netip"
	"strconv"
	"unicode/utf8"
)

// Tag is a BER identifier. For low tag numbers it is the whole identifier
// byte, so class and constructed bits are part of the value.
type Tag uint32

// Universal and SNMP application tags used on the wire.
const (
	TagBoolean     Tag = 0x01
	TagInteger     Tag = 0x02
	TagBitString   Tag = 0x03
	TagOctetString Tag = 0x04
	TagNull        Tag = 0x05
	TagOID         Tag = 0x06
	TagSequence    Tag = 0x30
	TagIPAddress   Tag = 0x40
	TagCounter     Tag = 0x41
	TagGauge       Tag = 0x42
	TagTimeTicks   Tag = 0x43
	TagOpaque      Tag = 0x44
)

var tagNames = map[Tag]string{
	TagBoolean:     "BOOLEAN",
	TagInteger:     "INTEGER",
	TagBitString:   "BIT STRING",
	TagOctetString: "OCTET STRING",
	TagNull:        "NULL",
	TagOID:         "OBJECT IDENTIFIER",
	TagSequence:    "SEQUENCE",
	TagIPAddress:   "IpAddress",
	TagCounter:     "Counter",
	TagGauge:       "Gauge",
	TagTimeTicks:   "TimeTicks",
	TagOpaque:      "Opaque",

	Tag(GetRequest):     "Get-Request-PDU",
	Tag(GetNextRequest): "Get-Next-Request-PDU",
	Tag(GetResponse):    "Get-Response-PDU",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "tag(0x" + strconv.FormatUint(uint64(t), 16) + ")"
}

// Value is one variable-binding value. The concrete types are Null, Boolean,
// Integer, OctetString, ObjectID, Counter, Gauge, TimeTicks and HexString.
type Value interface {
	Tag() Tag
	String() string
	isValue()
}

// Null is the ASN.1 NULL value carried by requests.
type Null struct{}

// Boolean is an ASN.1 BOOLEAN.
type Boolean bool

// Integer is a signed 32-bit INTEGER.
type Integer int32

// OctetString is an OCTET STRING.
type OctetString []byte

// ObjectID is an OBJECT IDENTIFIER value.
type ObjectID OID

// Counter is an SNMPv1 Counter (application 1).
type Counter uint32

// Gauge is an SNMPv1 Gauge (application 2).
type Gauge uint32

// TimeTicks counts hundredths of a second (application 3).
type TimeTicks uint32

// HexString holds the raw body of a tag with no dedicated type, such as
// IpAddress, BIT STRING or Opaque.
type HexString struct {
	Kind  Tag
	Bytes []byte
}

func (Null) Tag() Tag        { return TagNull }
func (Boolean) Tag() Tag     { return TagBoolean }
func (Integer) Tag() Tag     { return TagInteger }
func (OctetString) Tag() Tag { return TagOctetString }
func (ObjectID) Tag() Tag    { return TagOID }
func (Counter) Tag() Tag     { return TagCounter }
func (Gauge) Tag() Tag       { return TagGauge }
func (TimeTicks) Tag() Tag   { return TagTimeTicks }
func (h HexString) Tag() Tag { return h.Kind }

func (Null) isValue()        {}
func (Boolean) isValue()     {}
func (Integer) isValue()     {}
func (OctetString) isValue() {}
func (ObjectID) isValue()    {}
func (Counter) isValue()     {}
func (Gauge) isValue()       {}
func (TimeTicks) isValue()   {}
func (HexString) isValue()   {}

func (Null) String() string { return "NULL" }

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// String returns the text when the bytes are printable UTF-8 and hex otherwise.
func (s OctetString) String() string {
	if printable(s) {
		return string(s)
	}
	return hex.EncodeToString(s)
}

func (o ObjectID) String() string { return OID(o).String() }

func (c Counter) String() string { return strconv.FormatUint(uint64(c), 10) }

func (g Gauge) String() string { return strconv.FormatUint(uint64(g), 10) }

func (t TimeTicks) String() string { return strconv.FormatUint(uint64(t), 10) }

func (h HexString) String() string {
	if h.Kind == TagIPAddress && len(h.Bytes) == 4 {
		return netip.AddrFrom4([4]byte(h.Bytes)).String()
	}
	return hex.EncodeToString(h.Bytes)
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// AsInt returns the numeric content of Integer, Counter, Gauge, TimeTicks and
// Boolean values.
func AsInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case Integer:
		return int64(x), true
	case Counter:
		return int64(x), true
	case Gauge:
		return int64(x), true
	case TimeTicks:
		return int64(x), true
	case Boolean:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsString returns the text of an OctetString with trailing NUL bytes removed.
func AsString(v Value) (string, bool) {
	s, ok := v.(OctetString)
	if !ok {
		return "", false
	}
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), true
}

// sizeOfValue returns the body size of an encodable value.
func sizeOfValue(v Value) (int, error) {
	switch x := v.(type) {
	case Null, nil:
		return 0, nil
	case Boolean:
		return 1, nil
	case Integer:
		return sizeOfInteger(int32(x)), nil
	case OctetString:
		return len(x), nil
	case ObjectID:
		if err := validOID(OID(x)); err != nil {
			return 0, err
		}
		return sizeOfOID(OID(x)), nil
	default:
		return 0, ErrUnsupportedValue
	}
}

// encodeValue appends the body of a value accepted by sizeOfValue.
func encodeValue(dst []byte, v Value) []byte {
	switch x := v.(type) {
	case Boolean:
		if x {
			return append(dst, 1)
		}
		return append(dst, 0)
	case Integer:
		return encodeInteger(dst, int32(x))
	case OctetString:
		return append(dst, x...)
	case ObjectID:
		return encodeOID(dst, OID(x))
	default:
		return dst
	}
}

// encodable reports whether t is one of the five value types requests may carry.
func encodable(t Tag) bool {
	switch t {
	case TagNull, TagBoolean, TagInteger, TagOctetString, TagOID:
		return true
	default:
		return false
	}
}
