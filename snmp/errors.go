package snmp

import (
	"errors"
	"fmt"
)

// Encode errors.
var (
	// ErrBufferTooSmall is returned when an encoded packet does not fit the destination buffer.
	ErrBufferTooSmall = errors.New("packet does not fit in buffer")

	// ErrOIDTooLong is returned when an OID exceeds MaxOIDLen arcs or has fewer than two arcs.
	ErrOIDTooLong = errors.New("object identifier exceeds maximum length")

	// ErrUnsupportedValue is returned when the object type cannot be encoded.
	ErrUnsupportedValue = errors.New("unsupported value type for encoding")

	// ErrUnsupportedPDU is returned when the request type cannot be encoded.
	ErrUnsupportedPDU = errors.New("unsupported PDU type for encoding")

	// ErrLengthTooLarge is returned when a BER length exceeds 65535.
	ErrLengthTooLarge = errors.New("BER length exceeds 65535")

	// ErrCommunityTooLong is returned when the community string exceeds MaxCommunityLen.
	ErrCommunityTooLong = errors.New("community name exceeds maximum length")
)

// ErrNoResponse is returned by Receive when no datagram arrives before the
// timeout. It is distinct from transport and decode failures.
var ErrNoResponse = errors.New("no response")

// DecodeError reports the first structural violation found while decoding a
// packet. Reason is a stable, human-readable string.
type DecodeError struct {
	Reason string
	Offset int
}

func (e *DecodeError) Error() string {
	return "snmp: " + e.Reason
}

// TransportError wraps an operating system failure on the UDP socket.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snmp: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError carries a non-zero error-status returned by a remote agent.
type ProtocolError struct {
	Status int32
	Index  int32
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("snmp: agent returned %s (index %d)", ErrorStatusName(e.Status), e.Index)
}

// ErrorStatusName returns the SNMPv1 name of an error-status value.
func ErrorStatusName(status int32) string {
	switch status {
	case 0:
		return "noError"
	case 1:
		return "tooBig"
	case 2:
		return "noSuchName"
	case 3:
		return "badValue"
	case 4:
		return "readOnly"
	case 5:
		return "genErr"
	default:
		return fmt.Sprintf("errorStatus(%d)", status)
	}
}
