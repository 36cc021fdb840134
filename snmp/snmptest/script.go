package snmptest

import (
	"fmt"
	"sync"

	"github.com/gosnmp/gosnmp"
)

// Reply describes one response. Raw, when set, is sent as-is and every
// other field is ignored.
type Reply struct {
	// Name is the binding OID, dotted. Empty echoes the request name.
	Name  string
	Type  gosnmp.Asn1BER
	Value any

	ErrorStatus gosnmp.SNMPError
	ErrorIndex  uint8

	// RequestID overrides the echoed request id when non-zero.
	RequestID uint32

	// Drop swallows the request, so the client times out.
	Drop bool
	Raw  []byte
}

func (r Reply) marshal(req Request) ([]byte, error) {
	if r.Raw != nil {
		return r.Raw, nil
	}

	name := r.Name
	if name == "" {
		name = req.Name
	}
	typ := r.Type
	if typ == 0 {
		typ = gosnmp.Null
	}
	id := r.RequestID
	if id == 0 {
		id = req.RequestID
	}

	pkt := &gosnmp.SnmpPacket{
		Version:    gosnmp.Version1,
		Community:  req.Community,
		PDUType:    gosnmp.GetResponse,
		RequestID:  id,
		Error:      r.ErrorStatus,
		ErrorIndex: r.ErrorIndex,
		Variables: []gosnmp.SnmpPDU{{
			Name:  "." + trimDot(name),
			Type:  typ,
			Value: r.Value,
		}},
	}
	out, err := pkt.MarshalMsg()
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply for %s: %w", name, err)
	}
	return out, nil
}

// Script answers requests from a queue of replies, one per request. Once
// the queue is empty further requests are dropped.
type Script struct {
	mu      sync.Mutex
	replies []Reply
}

// NewScript returns a script that sends replies in order.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Push appends replies to the queue.
func (s *Script) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Pending returns the number of replies not yet sent.
func (s *Script) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Respond implements Responder.
func (s *Script) Respond(Request) (Reply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return Reply{}, false
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next, true
}

// String is a convenience for an OCTET STRING reply.
func String(name, value string) Reply {
	return Reply{Name: name, Type: gosnmp.OctetString, Value: []byte(value)}
}

// Integer is a convenience for an INTEGER reply.
func Integer(name string, value int) Reply {
	return Reply{Name: name, Type: gosnmp.Integer, Value: value}
}

// Timeout is a reply that is never sent.
func Timeout() Reply {
	return Reply{Drop: true}
}

func trimDot(s string) string {
	for len(s) > 0 && s[0] == '.' {
		s = s[1:]
	}
	return s
}
