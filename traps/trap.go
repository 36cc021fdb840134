// Package traps receives SNMP traps from printers.
//
// A Listener reads datagrams on a UDP socket, hands them to a pool of
// workers and delivers every decoded Trap that carries the expected
// community to a Handler. printkit poll uses it to re-probe a printer as
// soon as it reports a state change instead of waiting for the next round.
//
// Basic usage:
//
//	l := traps.NewListener(traps.Options{
//		Listen:    ":162",
//		Community: "public",
//		Handler: func(ctx context.Context, t *traps.Trap) {
//			_, _ = poller.Refresh(ctx, t.Printer())
//		},
//	})
//	if err := l.Start(ctx); err != nil {
//		return err
//	}
//	defer l.Stop(context.Background())
package traps

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/geekxflood/printkit/mibnames"
	"github.com/geekxflood/printkit/snmp"
)

// Generic trap numbers of SNMPv1 Trap-PDUs.
const (
	ColdStart             = 0
	WarmStart             = 1
	LinkDown              = 2
	LinkUp                = 3
	AuthenticationFailure = 4
	EGPNeighborLoss       = 5
	EnterpriseSpecific    = 6
)

var (
	oidSysUpTime   = snmp.OID{1, 3, 6, 1, 2, 1, 1, 3, 0}
	oidSnmpTrapOID = snmp.OID{1, 3, 6, 1, 6, 3, 1, 1, 4, 1, 0}
	oidSnmpTraps   = snmp.OID{1, 3, 6, 1, 6, 3, 1, 1, 5}
)

// ErrNotTrap is returned by Decode for messages that decode but are not a
// Trap-PDU or SNMPv2-Trap-PDU.
var ErrNotTrap = errors.New("not a trap")

// Trap is one decoded SNMPv1 or SNMPv2c trap.
type Trap struct {
	Source    netip.AddrPort
	Version   string
	Community string

	// TrapOID identifies the event. SNMPv1 traps are mapped the way
	// SNMPv2 proxies do: generic traps to snmpTraps.(generic+1), enterprise
	// specific ones to enterprise.0.specific.
	TrapOID snmp.OID

	// SNMPv1 header fields, zero for SNMPv2c traps.
	Enterprise   snmp.OID
	AgentAddr    netip.Addr
	GenericTrap  int
	SpecificTrap int

	Uptime    time.Duration
	Variables []Variable
}

// Variable is one binding of a trap.
type Variable struct {
	OID   snmp.OID
	Name  string
	Type  string
	Value any
}

// Printer returns the address of the printer that sent t: the SNMPv1 agent
// address when it is set, the datagram source otherwise.
func (t *Trap) Printer() netip.Addr {
	if t.AgentAddr.IsValid() && !t.AgentAddr.IsUnspecified() {
		return t.AgentAddr
	}
	return t.Source.Addr()
}

// Decode parses a trap datagram received from source. SNMPv3 messages are
// rejected.
func Decode(data []byte, source netip.AddrPort) (*Trap, error) {
	decoder := &gosnmp.GoSNMP{}
	packet, err := decoder.UnmarshalTrap(data, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trap: %w", err)
	}

	t := &Trap{
		Source:    source,
		Version:   versionString(packet.Version),
		Community: packet.Community,
	}

	switch {
	case packet.Version == gosnmp.Version1 && packet.PDUType == gosnmp.Trap:
		if err := t.setV1Header(packet); err != nil {
			return nil, err
		}
	case packet.Version == gosnmp.Version2c && packet.PDUType == gosnmp.SNMPv2Trap:
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrNotTrap, t.Version, packet.PDUType)
	}

	for _, pdu := range packet.Variables {
		oid, err := snmp.ParseOID(pdu.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid variable name %q: %w", pdu.Name, err)
		}

		switch {
		case oid.Equal(oidSysUpTime):
			t.Uptime = ticks(pdu.Value)
			continue
		case oid.Equal(oidSnmpTrapOID):
			if s, ok := pdu.Value.(string); ok {
				if trapOID, err := snmp.ParseOID(s); err == nil {
					t.TrapOID = trapOID
				}
			}
			continue
		}

		t.Variables = append(t.Variables, Variable{
			OID:   oid,
			Name:  oid.String(),
			Type:  pdu.Type.String(),
			Value: detach(pdu.Value),
		})
	}

	if t.TrapOID == nil {
		return nil, fmt.Errorf("%w: missing snmpTrapOID.0", ErrNotTrap)
	}
	return t, nil
}

func (t *Trap) setV1Header(packet *gosnmp.SnmpPacket) error {
	enterprise, err := snmp.ParseOID(packet.Enterprise)
	if err != nil {
		return fmt.Errorf("invalid enterprise %q: %w", packet.Enterprise, err)
	}
	t.Enterprise = enterprise
	t.GenericTrap = packet.GenericTrap
	t.SpecificTrap = packet.SpecificTrap
	t.Uptime = ticks(packet.Timestamp)
	if addr, err := netip.ParseAddr(packet.AgentAddress); err == nil {
		t.AgentAddr = addr.Unmap()
	}

	if t.GenericTrap == EnterpriseSpecific {
		t.TrapOID = enterprise.Append(0, uint32(t.SpecificTrap))
	} else {
		t.TrapOID = oidSnmpTraps.Append(uint32(t.GenericTrap) + 1)
	}
	return nil
}

// Translate replaces the numeric variable names of t with names from names.
func (t *Trap) Translate(names mibnames.Translator) {
	if names == nil {
		return
	}
	for i := range t.Variables {
		if name, err := names.TranslateOID(t.Variables[i].OID); err == nil || errors.Is(err, mibnames.ErrNotFound) {
			t.Variables[i].Name = name
		}
	}
}

// String renders the value of v the way the walk command prints it.
func (v Variable) String() string {
	switch value := v.Value.(type) {
	case []byte:
		return strings.TrimRight(string(value), "\x00")
	case nil:
		return "NULL"
	default:
		return fmt.Sprint(value)
	}
}

// detach copies byte values so the trap does not alias the datagram buffer.
func detach(v any) any {
	if b, ok := v.([]byte); ok {
		return bytes.Clone(b)
	}
	return v
}

// ticks converts TimeTicks, hundredths of a second, to a Duration.
func ticks(v any) time.Duration {
	var n uint64
	switch value := v.(type) {
	case uint:
		n = uint64(value)
	case uint32:
		n = uint64(value)
	case uint64:
		n = value
	case int:
		if value > 0 {
			n = uint64(value)
		}
	}
	return time.Duration(n) * 10 * time.Millisecond
}

func versionString(v gosnmp.SnmpVersion) string {
	switch v {
	case gosnmp.Version1:
		return "1"
	case gosnmp.Version2c:
		return "2c"
	case gosnmp.Version3:
		return "3"
	default:
		return "unknown"
	}
}
