package snmp

import (
	"net/netip"
	"strconv"
)

// Size limits for a single-binding SNMPv1 message.
const (
	// MaxPacketSize is the scratch buffer size used by Send and Receive.
	MaxPacketSize = 1472
	// MaxCommunityLen is the longest community name encoded or kept on decode.
	MaxCommunityLen = 512
	// MaxStringLen bounds OCTET STRING and raw values kept on decode; longer
	// values are cut to MaxStringLen-1 bytes.
	MaxStringLen = 1024
)

// Version1 is the only protocol version on the wire.
const Version1 = 0

// PDUType identifies the PDU carried by a packet.
type PDUType Tag

// PDU types.
const (
	GetRequest     PDUType = 0xA0
	GetNextRequest PDUType = 0xA1
	GetResponse    PDUType = 0xA2
)

func (t PDUType) String() string {
	switch t {
	case GetRequest:
		return "GetRequest"
	case GetNextRequest:
		return "GetNextRequest"
	case GetResponse:
		return "GetResponse"
	default:
		return "PDU(0x" + strconv.FormatUint(uint64(t), 16) + ")"
	}
}

// Packet is one SNMPv1 message with a single variable binding.
//
// Source is set only on received packets. When Err is non-nil the packet
// failed to decode and the remaining fields are incomplete.
type Packet struct {
	Version     int32
	Community   string
	RequestType PDUType
	RequestID   uint32
	ErrorStatus int32
	ErrorIndex  int32
	ObjectName  OID
	ObjectType  Tag
	ObjectValue Value
	Source      netip.AddrPort
	Err         error
}

// NewGetNextRequest builds a GetNextRequest for name with a NULL value.
func NewGetNextRequest(community string, requestID uint32, name OID) *Packet {
	return &Packet{
		Version:     Version1,
		Community:   community,
		RequestType: GetNextRequest,
		RequestID:   requestID,
		ObjectName:  name,
		ObjectType:  TagNull,
		ObjectValue: Null{},
	}
}

// NewGetRequest builds a GetRequest for name with a NULL value.
func NewGetRequest(community string, requestID uint32, name OID) *Packet {
	p := NewGetNextRequest(community, requestID, name)
	p.RequestType = GetRequest
	return p
}

// packetLayout holds the body sizes computed before any byte is written.
type packetLayout struct {
	valueType Tag
	value     int
	name      int
	varbind   int
	varbinds  int
	pdu       int
	message   int
	total     int
}

func layoutPacket(p *Packet) (packetLayout, error) {
	var l packetLayout

	switch p.RequestType {
	case GetRequest, GetNextRequest, GetResponse:
	default:
		return l, ErrUnsupportedPDU
	}
	if len(p.Community) > MaxCommunityLen {
		return l, ErrCommunityTooLong
	}
	if err := validOID(p.ObjectName); err != nil {
		return l, err
	}

	l.valueType = p.ObjectType
	if l.valueType == 0 {
		l.valueType = TagNull
		if p.ObjectValue != nil {
			l.valueType = p.ObjectValue.Tag()
		}
	}
	if !encodable(l.valueType) {
		return l, ErrUnsupportedValue
	}
	if p.ObjectValue == nil && l.valueType != TagNull {
		return l, ErrUnsupportedValue
	}
	if p.ObjectValue != nil && p.ObjectValue.Tag() != l.valueType {
		return l, ErrUnsupportedValue
	}

	var err error
	if l.value, err = sizeOfValue(p.ObjectValue); err != nil {
		return l, err
	}
	l.name = sizeOfOID(p.ObjectName)

	nameTLV, err := sizeOfTLV(l.name)
	if err != nil {
		return l, err
	}
	valueTLV, err := sizeOfTLV(l.value)
	if err != nil {
		return l, err
	}
	l.varbind = nameTLV + valueTLV

	if l.varbinds, err = sizeOfTLV(l.varbind); err != nil {
		return l, err
	}
	varbindsTLV, err := sizeOfTLV(l.varbinds)
	if err != nil {
		return l, err
	}

	l.pdu = 2 + sizeOfUnsigned(p.RequestID) +
		2 + sizeOfInteger(p.ErrorStatus) +
		2 + sizeOfInteger(p.ErrorIndex) +
		varbindsTLV

	pduTLV, err := sizeOfTLV(l.pdu)
	if err != nil {
		return l, err
	}
	communityTLV, err := sizeOfTLV(len(p.Community))
	if err != nil {
		return l, err
	}
	l.message = 2 + sizeOfInteger(p.Version) + communityTLV + pduTLV

	if l.total, err = sizeOfTLV(l.message); err != nil {
		return l, err
	}
	return l, nil
}

// EncodePacket writes p into dst and returns the number of bytes used.
// Sizes are computed first so nothing is written when the packet does not
// fit, the OID is out of range or the value type cannot be encoded.
func EncodePacket(dst []byte, p *Packet) (int, error) {
	l, err := layoutPacket(p)
	if err != nil {
		return 0, err
	}
	if l.total > len(dst) {
		return 0, ErrBufferTooSmall
	}

	b := dst[:0]
	// Lengths were validated by layoutPacket; the header errors cannot occur.
	b, _ = encodeHeader(b, TagSequence, l.message)
	b, _ = encodeHeader(b, TagInteger, sizeOfInteger(p.Version))
	b = encodeInteger(b, p.Version)
	b, _ = encodeHeader(b, TagOctetString, len(p.Community))
	b = append(b, p.Community...)

	b, _ = encodeHeader(b, Tag(p.RequestType), l.pdu)
	b, _ = encodeHeader(b, TagInteger, sizeOfUnsigned(p.RequestID))
	b = encodeUnsigned(b, p.RequestID)
	b, _ = encodeHeader(b, TagInteger, sizeOfInteger(p.ErrorStatus))
	b = encodeInteger(b, p.ErrorStatus)
	b, _ = encodeHeader(b, TagInteger, sizeOfInteger(p.ErrorIndex))
	b = encodeInteger(b, p.ErrorIndex)

	b, _ = encodeHeader(b, TagSequence, l.varbinds)
	b, _ = encodeHeader(b, TagSequence, l.varbind)
	b, _ = encodeHeader(b, TagOID, l.name)
	b = encodeOID(b, p.ObjectName)
	b, _ = encodeHeader(b, l.valueType, l.value)
	b = encodeValue(b, p.ObjectValue)

	return len(b), nil
}

// MarshalPacket encodes p into a newly allocated slice.
func MarshalPacket(p *Packet) ([]byte, error) {
	l, err := layoutPacket(p)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, l.total)
	n, err := EncodePacket(buf, p)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode failure reasons.
const (
	reasonTruncated          = "Truncated packet"
	reasonIntegerTooLarge    = "Integer value too large"
	reasonUnsupportedValue   = "Unsupported value type"
	reasonNoResponsePDU      = "Packet does not contain a Get-Response-PDU"
	reasonNoRequestPDU       = "Packet does not contain a Get-Request-PDU"
	reasonBadVersion         = "Bad SNMP version number"
	reasonValueIndefinite    = "Value uses indefinite length"
	reasonNotSequence        = "Packet does not start with SEQUENCE"
	reasonSequenceIndefinite = "SEQUENCE uses indefinite length"
)

// DecodePacket decodes a GetResponse message. It never panics and always
// returns a packet; on failure the packet's Err holds the same *DecodeError
// that is returned.
func DecodePacket(buf []byte) (*Packet, error) {
	return decodePacket(buf, func(t Tag) bool { return t == Tag(GetResponse) }, reasonNoResponsePDU)
}

// DecodeRequest decodes a GetRequest or GetNextRequest message, as seen by
// an agent.
func DecodeRequest(buf []byte) (*Packet, error) {
	accept := func(t Tag) bool {
		return t == Tag(GetRequest) || t == Tag(GetNextRequest)
	}
	return decodePacket(buf, accept, reasonNoRequestPDU)
}

type packetDecoder struct {
	p *Packet
}

func (d *packetDecoder) fail(c *cursor, reason string) error {
	err := &DecodeError{Reason: reason, Offset: c.offset()}
	d.p.Err = err
	return err
}

// expect reads a header that must carry tag want and a non-empty body that
// fits in c.
func (d *packetDecoder) expect(c *cursor, want Tag, missing, indefinite string) (int, error) {
	tag, ok := decodeTag(c)
	if !ok || tag != want {
		return 0, d.fail(c, missing)
	}
	n, ok := decodeLength(c)
	if !ok {
		return 0, d.fail(c, reasonTruncated)
	}
	if n == 0 {
		return 0, d.fail(c, indefinite)
	}
	if n > c.remaining() {
		return 0, d.fail(c, reasonTruncated)
	}
	return n, nil
}

func (d *packetDecoder) sequence(c *cursor, want Tag, missing, indefinite string) (*cursor, error) {
	n, err := d.expect(c, want, missing, indefinite)
	if err != nil {
		return nil, err
	}
	body, _ := c.sub(n)
	return body, nil
}

func (d *packetDecoder) integer(c *cursor, missing, indefinite string) (int32, error) {
	n, err := d.expect(c, TagInteger, missing, indefinite)
	if err != nil {
		return 0, err
	}
	v, ok := decodeInteger(c, n)
	if !ok {
		return 0, d.fail(c, reasonIntegerTooLarge)
	}
	return v, nil
}

func decodePacket(buf []byte, acceptPDU func(Tag) bool, wrongPDU string) (*Packet, error) {
	p := &Packet{}
	d := &packetDecoder{p: p}
	c := newCursor(buf)

	msg, err := d.sequence(c, TagSequence, reasonNotSequence, reasonSequenceIndefinite)
	if err != nil {
		return p, err
	}

	if p.Version, err = d.integer(msg, "No version number", "Version uses indefinite length"); err != nil {
		return p, err
	}
	if p.Version != Version1 {
		return p, d.fail(msg, reasonBadVersion)
	}

	n, err := d.expect(msg, TagOctetString, "No community name", "Community name uses indefinite length")
	if err != nil {
		return p, err
	}
	community, _ := decodeOctetString(msg, n, MaxCommunityLen+1)
	p.Community = string(community)

	tag, ok := decodeTag(msg)
	if !ok || !acceptPDU(tag) {
		return p, d.fail(msg, wrongPDU)
	}
	p.RequestType = PDUType(tag)
	n, ok = decodeLength(msg)
	switch {
	case !ok || n > msg.remaining():
		return p, d.fail(msg, reasonTruncated)
	case n == 0:
		return p, d.fail(msg, p.RequestType.pduName()+" uses indefinite length")
	}
	pdu, _ := msg.sub(n)

	n, err = d.expect(pdu, TagInteger, "No request-id", "request-id uses indefinite length")
	if err != nil {
		return p, err
	}
	id, ok := decodeUnsigned(pdu, n)
	if !ok {
		return p, d.fail(pdu, reasonIntegerTooLarge)
	}
	p.RequestID = id

	if p.ErrorStatus, err = d.integer(pdu, "No error-status", "error-status uses indefinite length"); err != nil {
		return p, err
	}
	if p.ErrorIndex, err = d.integer(pdu, "No error-index", "error-index uses indefinite length"); err != nil {
		return p, err
	}

	varbinds, err := d.sequence(pdu, TagSequence, "No variable-bindings SEQUENCE", "variable-bindings uses indefinite length")
	if err != nil {
		return p, err
	}
	varbind, err := d.sequence(varbinds, TagSequence, "No VarBind SEQUENCE", "VarBind uses indefinite length")
	if err != nil {
		return p, err
	}

	n, err = d.expect(varbind, TagOID, "No name OID", "Name OID uses indefinite length")
	if err != nil {
		return p, err
	}
	name, ok := decodeOID(varbind, n, MaxOIDLen)
	if !ok {
		return p, d.fail(varbind, reasonTruncated)
	}
	p.ObjectName = name

	if err := d.value(varbind); err != nil {
		return p, err
	}
	return p, nil
}

// value decodes the binding value into ObjectType and ObjectValue.
func (d *packetDecoder) value(c *cursor) error {
	tag, ok := decodeTag(c)
	if !ok {
		return d.fail(c, reasonTruncated)
	}
	n, ok := decodeLength(c)
	if !ok || n > c.remaining() {
		return d.fail(c, reasonTruncated)
	}
	if n == 0 && tag != TagNull && tag != TagOctetString {
		return d.fail(c, reasonValueIndefinite)
	}

	var v Value
	switch tag {
	case TagNull:
		c.take(n)
		v = Null{}
	case TagBoolean:
		i, ok := decodeInt64(c, n)
		if !ok {
			return d.fail(c, reasonIntegerTooLarge)
		}
		v = Boolean(i != 0)
	case TagInteger:
		i, ok := decodeInteger(c, n)
		if !ok {
			return d.fail(c, reasonIntegerTooLarge)
		}
		v = Integer(i)
	case TagCounter, TagGauge, TagTimeTicks:
		u, ok := decodeUnsigned(c, n)
		if !ok {
			return d.fail(c, reasonIntegerTooLarge)
		}
		switch tag {
		case TagCounter:
			v = Counter(u)
		case TagGauge:
			v = Gauge(u)
		default:
			v = TimeTicks(u)
		}
	case TagOctetString:
		s, _ := decodeOctetString(c, n, MaxStringLen)
		v = OctetString(s)
	case TagOID:
		oid, ok := decodeOID(c, n, MaxOIDLen)
		if !ok {
			return d.fail(c, reasonTruncated)
		}
		v = ObjectID(oid)
	case TagIPAddress, TagBitString, TagOpaque:
		raw, _ := decodeOctetString(c, n, MaxStringLen)
		v = HexString{Kind: tag, Bytes: raw}
	default:
		return d.fail(c, reasonUnsupportedValue)
	}

	d.p.ObjectType = tag
	d.p.ObjectValue = v
	return nil
}

func (t PDUType) pduName() string {
	switch t {
	case GetResponse:
		return "Get-Response-PDU"
	case GetNextRequest:
		return "Get-Next-Request-PDU"
	default:
		return "Get-Request-PDU"
	}
}
