package traps

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/geekxflood/printkit/mibnames"
	"github.com/geekxflood/printkit/snmp"
)

var source = netip.MustParseAddrPort("192.0.2.7:1024")

// v1Trap is an enterprise-specific trap from an HP agent carrying
// hrPrinterDetectedErrorState with doorOpen set.
func v1Trap(t *testing.T, community string) []byte {
	t.Helper()
	packet := &gosnmp.SnmpPacket{
		Version:   gosnmp.Version1,
		Community: community,
		PDUType:   gosnmp.Trap,
		Variables: []gosnmp.SnmpPDU{{
			Name:  ".1.3.6.1.2.1.25.3.5.1.2.1",
			Type:  gosnmp.OctetString,
			Value: []byte{0x08, 0x00},
		}},
		SnmpTrap: gosnmp.SnmpTrap{
			Enterprise:   ".1.3.6.1.4.1.11.2.3.9.1",
			AgentAddress: "192.0.2.10",
			GenericTrap:  EnterpriseSpecific,
			SpecificTrap: 3,
			Timestamp:    4200,
		},
	}
	data, err := packet.MarshalMsg()
	require.NoError(t, err)
	return data
}

func v2Trap(t *testing.T, community string) []byte {
	t.Helper()
	packet := &gosnmp.SnmpPacket{
		Version:   gosnmp.Version2c,
		Community: community,
		PDUType:   gosnmp.SNMPv2Trap,
		RequestID: 7,
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(100)},
			{Name: ".1.3.6.1.6.3.1.1.4.1.0", Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.2.1.43.18.2.0.1"},
			{Name: ".1.3.6.1.2.1.43.18.1.1.8.1.1", Type: gosnmp.OctetString, Value: []byte("Cover open\x00")},
		},
	}
	data, err := packet.MarshalMsg()
	require.NoError(t, err)
	return data
}

func TestDecodeV1(t *testing.T) {
	trap, err := Decode(v1Trap(t, "public"), source)
	require.NoError(t, err)

	assert.Equal(t, "1", trap.Version)
	assert.Equal(t, "public", trap.Community)
	assert.Equal(t, snmp.OID{1, 3, 6, 1, 4, 1, 11, 2, 3, 9, 1}, trap.Enterprise)
	assert.Equal(t, snmp.OID{1, 3, 6, 1, 4, 1, 11, 2, 3, 9, 1, 0, 3}, trap.TrapOID)
	assert.Equal(t, EnterpriseSpecific, trap.GenericTrap)
	assert.Equal(t, 3, trap.SpecificTrap)
	assert.Equal(t, 42*time.Second, trap.Uptime)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), trap.Printer())

	require.Len(t, trap.Variables, 1)
	v := trap.Variables[0]
	assert.Equal(t, "1.3.6.1.2.1.25.3.5.1.2.1", v.Name)
	assert.Equal(t, "OctetString", v.Type)
	assert.Equal(t, []byte{0x08, 0x00}, v.Value)
}

func TestDecodeV1Generic(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Version:   gosnmp.Version1,
		Community: "public",
		PDUType:   gosnmp.Trap,
		SnmpTrap: gosnmp.SnmpTrap{
			Enterprise:   ".1.3.6.1.4.1.11",
			AgentAddress: "0.0.0.0",
			GenericTrap:  ColdStart,
		},
	}
	data, err := packet.MarshalMsg()
	require.NoError(t, err)

	trap, err := Decode(data, source)
	require.NoError(t, err)
	assert.Equal(t, snmp.OID{1, 3, 6, 1, 6, 3, 1, 1, 5, 1}, trap.TrapOID)
	assert.Equal(t, source.Addr(), trap.Printer(), "unspecified agent address falls back to the source")
}

func TestDecodeV2c(t *testing.T) {
	trap, err := Decode(v2Trap(t, "public"), source)
	require.NoError(t, err)

	assert.Equal(t, "2c", trap.Version)
	assert.Equal(t, snmp.OID{1, 3, 6, 1, 2, 1, 43, 18, 2, 0, 1}, trap.TrapOID)
	assert.Equal(t, time.Second, trap.Uptime)
	assert.Nil(t, trap.Enterprise)
	assert.Equal(t, source.Addr(), trap.Printer())

	require.Len(t, trap.Variables, 1)
	assert.Equal(t, "Cover open", trap.Variables[0].String())
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte{0x30, 0x03, 0x02, 0x01}, source)
	assert.Error(t, err)

	get := &gosnmp.SnmpPacket{
		Version:   gosnmp.Version1,
		Community: "public",
		PDUType:   gosnmp.GetRequest,
		RequestID: 1,
		Variables: []gosnmp.SnmpPDU{{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.Null}},
	}
	data, err := get.MarshalMsg()
	require.NoError(t, err)
	_, err = Decode(data, source)
	assert.ErrorIs(t, err, ErrNotTrap)
}

func TestTranslate(t *testing.T) {
	names := mibnames.NewWithConfig(mibnames.Config{MaxCacheSize: 16})
	require.NoError(t, names.Init(""))
	defer names.Close()

	trap, err := Decode(v1Trap(t, "public"), source)
	require.NoError(t, err)
	trap.Translate(names)
	assert.Equal(t, "hrPrinterDetectedErrorState.1", trap.Variables[0].Name)

	trap.Translate(nil)
	assert.Equal(t, "hrPrinterDetectedErrorState.1", trap.Variables[0].Name)
}

func send(t *testing.T, addr netip.AddrPort, datagrams ...[]byte) {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(addr))
	require.NoError(t, err)
	defer conn.Close()
	for _, d := range datagrams {
		_, err := conn.Write(d)
		require.NoError(t, err)
	}
}

func TestListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu       sync.Mutex
		received []*Trap
	)
	reg := prometheus.NewRegistry()
	l := NewListener(Options{
		Listen:     "127.0.0.1:0",
		Community:  "public",
		Workers:    2,
		Registerer: reg,
		Handler: func(_ context.Context, trap *Trap) {
			mu.Lock()
			received = append(received, trap)
			mu.Unlock()
		},
	})
	require.NoError(t, l.Start(context.Background()))
	require.True(t, l.Addr().IsValid())

	send(t, l.Addr(), v1Trap(t, "public"), v1Trap(t, "private"), []byte("garbage"), v2Trap(t, "public"))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(l.received.WithLabelValues(resultAccepted)) == 2 &&
			testutil.ToFloat64(l.received.WithLabelValues(resultRejected)) == 1 &&
			testutil.ToFloat64(l.received.WithLabelValues(resultMalformed)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, l.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	printers := []netip.Addr{received[0].Printer(), received[1].Printer()}
	assert.ElementsMatch(t, []netip.Addr{netip.MustParseAddr("192.0.2.10"), netip.MustParseAddr("127.0.0.1")}, printers)

	n, err := testutil.GatherAndCount(reg, "printkit_traps_received_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListenerAnyCommunity(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan *Trap, 1)
	l := NewListener(Options{
		Listen: "127.0.0.1:0",
		Handler: func(_ context.Context, trap *Trap) {
			done <- trap
		},
	})
	require.NoError(t, l.Start(context.Background()))
	defer func() {
		require.NoError(t, l.Stop(context.Background()))
	}()

	send(t, l.Addr(), v1Trap(t, "private"))
	select {
	case trap := <-done:
		assert.Equal(t, "private", trap.Community)
	case <-time.After(2 * time.Second):
		t.Fatal("trap not delivered")
	}
}

func TestListenerStartError(t *testing.T) {
	l := NewListener(Options{Listen: "127.0.0.1:70000"})
	assert.Error(t, l.Start(context.Background()))
	assert.NoError(t, l.Stop(context.Background()))
}
