package snmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/geekxflood/printkit/logging"
)

// DefaultPort is the SNMP agent port.
const DefaultPort = 161

// pollDeadline stands in for a zero timeout. A deadline that has already
// passed fails the read before the socket is checked.
const pollDeadline = time.Millisecond

// Observer receives transport events. The discovery collector implements it
// to count packets, timeouts and decode failures.
type Observer interface {
	PacketSent(dst netip.Addr, size int)
	PacketReceived(src netip.Addr, size int, err error)
	ResponseTimeout()
}

// Options configures a Conn.
type Options struct {
	// Port is the destination port for every request. Zero means 161.
	Port int

	// Logger receives debug records. Nil discards them.
	Logger logging.Logger

	// Dump logs a BER tree of every packet sent and received at debug level.
	Dump bool

	// ReadBuffer sets SO_RCVBUF when positive. Broadcast discovery on a
	// busy network may need more than the default.
	ReadBuffer int

	// Observer is notified of sends, receives and timeouts when non-nil.
	Observer Observer
}

// Conn is one UDP socket used to exchange SNMPv1 packets. A Conn is not safe
// for concurrent use: responses are read in the order they arrive, so a
// second request in flight would see the first one's reply.
type Conn struct {
	conn     *net.UDPConn
	port     uint16
	logger   logging.Logger
	dump     bool
	observer Observer

	// requestID is the last id used by Get and Broadcast.
	requestID uint32

	sendBuf [MaxPacketSize]byte
	recvBuf [MaxPacketSize]byte
}

// Open creates an unconnected UDP socket with SO_BROADCAST enabled. family
// is "udp4" or "udp6"; an empty family means udp4.
func Open(ctx context.Context, family string, opts Options) (*Conn, error) {
	switch family {
	case "":
		family = "udp4"
	case "udp4", "udp6":
	default:
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("unsupported address family %q", family)}
	}

	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || port > 65535 {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("invalid port %d", port)}
	}

	var sockErr error
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			if err := setBroadcast(c); err != nil {
				sockErr = err
				return err
			}
			return nil
		},
	}

	pc, err := lc.ListenPacket(ctx, family, "")
	if err != nil {
		if sockErr != nil {
			return nil, &TransportError{Op: "setsockopt", Err: sockErr}
		}
		return nil, &TransportError{Op: "open", Err: err}
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, &TransportError{Op: "open", Err: errors.New("unexpected packet connection type")}
	}

	if opts.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(opts.ReadBuffer); err != nil {
			_ = conn.Close()
			return nil, &TransportError{Op: "setsockopt", Err: err}
		}
	}

	c := &Conn{
		conn:     conn,
		port:     uint16(port),
		logger:   logging.OrDiscard(opts.Logger),
		dump:     opts.Dump,
		observer: opts.Observer,
	}
	c.logger.Debug("snmp socket opened", "local", c.LocalAddr().String(), "port", port)
	return c, nil
}

// LocalAddr returns the address the socket is bound to.
func (c *Conn) LocalAddr() netip.AddrPort {
	if addr, ok := c.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.AddrPort()
	}
	return netip.AddrPort{}
}

// Port returns the destination port requests are sent to.
func (c *Conn) Port() int {
	return int(c.port)
}

// Send encodes p and writes it to dst on the configured port. Encode errors
// are returned unchanged.
func (c *Conn) Send(dst netip.Addr, p *Packet) error {
	n, err := EncodePacket(c.sendBuf[:], p)
	if err != nil {
		return err
	}
	buf := c.sendBuf[:n]

	if c.dump {
		c.logger.Debug("sending packet", "dst", dst.String(), "bytes", n, "packet", DumpTLV(buf))
	}

	to := netip.AddrPortFrom(dst.Unmap(), c.port)
	if _, err := c.conn.WriteToUDPAddrPort(buf, to); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if c.observer != nil {
		c.observer.PacketSent(dst, n)
	}
	return nil
}

// Receive waits for one datagram and decodes it as a GetResponse.
//
// A timeout of zero polls, a negative timeout blocks until a datagram
// arrives or the Conn is closed. When nothing arrives in time the error is
// ErrNoResponse. A datagram that fails to decode is returned together with
// its *DecodeError so callers can log the source.
func (c *Conn) Receive(timeout time.Duration) (*Packet, error) {
	var deadline time.Time
	switch {
	case timeout > 0:
		deadline = time.Now().Add(timeout)
	case timeout == 0:
		deadline = time.Now().Add(pollDeadline)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}

	for {
		n, from, err := c.conn.ReadFromUDPAddrPort(c.recvBuf[:])
		if err != nil {
			if isInterrupted(err) {
				continue
			}
			if isTimeoutError(err) {
				if c.observer != nil {
					c.observer.ResponseTimeout()
				}
				return nil, ErrNoResponse
			}
			return nil, &TransportError{Op: "receive", Err: err}
		}

		buf := c.recvBuf[:n]
		if c.dump {
			c.logger.Debug("received packet", "src", from.String(), "bytes", n, "packet", DumpTLV(buf))
		}

		p, err := DecodePacket(buf)
		p.Source = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		if c.observer != nil {
			c.observer.PacketReceived(p.Source.Addr(), n, err)
		}
		if err != nil {
			c.logger.Debug("discarding undecodable packet", "src", from.String(), "error", err)
		}
		return p, err
	}
}

// Close releases the socket. Blocked Receive calls return a TransportError.
func (c *Conn) Close() error {
	if err := c.conn.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

func isTimeoutError(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
